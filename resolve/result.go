package resolve

// Mode is the caller's requested output: the full media, or audio only.
type Mode string

const (
	ModeAuto  Mode = "auto"
	ModeAudio Mode = "audio"
)

// Request is one user-submitted lookup. It is never persisted.
type Request struct {
	URL  string
	Mode Mode
}

type Kind string

const (
	KindSingle Kind = "single"
	KindPicker Kind = "picker"
)

type ItemKind string

const (
	ItemPhoto ItemKind = "photo"
	ItemVideo ItemKind = "video"
)

// Result is the normalized reply of whichever provider answered first.
// Exactly one of Single/Items is populated, selected by Kind. Failures are
// the error return of Resolve, not a Result case.
type Result struct {
	Kind   Kind
	Single Media
	Items  []PickerItem
}

type Media struct {
	MediaURL string
	Filename string
	MimeHint string
	ThumbURL string
	Title    string // optional, providers rarely supply one
}

type PickerItem struct {
	MediaURL string
	Kind     ItemKind
	ThumbURL string
}
