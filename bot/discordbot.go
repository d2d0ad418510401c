// Package bot is the optional Discord front end: it watches messages for
// supported post URLs and replies with proxied download links served by
// this process.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/savegram/grab-server/resolve"
	"go.opentelemetry.io/otel"

	"github.com/bwmarrin/discordgo"
)

var (
	tracer     = otel.Tracer("bot")
	urlPattern = regexp.MustCompile(`https://\S+`)
)

type Discord struct {
	id                 string
	session            *discordgo.Session
	lastChannelMessage map[string]string

	Token     string
	PublicURL string
	Resolver  *resolve.Resolver
	ProxyURL  func(upstream, filename string) string
}

func (b *Discord) Start() error {
	dg, _ := discordgo.New("Bot " + b.Token)
	b.session = dg

	dg.Identify.Intents = discordgo.IntentGuildMessages | discordgo.IntentDirectMessages

	dg.SyncEvents = true
	dg.StateEnabled = false

	dg.AddHandler(b.readyHandler)
	dg.AddHandler(b.messageCreateHandler)

	if err := dg.Open(); err != nil {
		return fmt.Errorf("dg.Open: %w", err)
	}

	return nil
}

func (b *Discord) Close() error {
	return b.session.Close()
}

func (b *Discord) readyHandler(s *discordgo.Session, m *discordgo.Ready) {
	b.id = m.User.ID
	if b.lastChannelMessage == nil {
		b.lastChannelMessage = make(map[string]string)
	}
}

func (b *Discord) messageCreateHandler(s *discordgo.Session, m *discordgo.MessageCreate) {
	b.lastChannelMessage[m.ChannelID] = m.ID

	if m.Author.ID == b.id {
		return
	}

	url := urlPattern.FindString(m.Content)
	if url == "" {
		return
	}

	if !b.Resolver.IsSupported(url) {
		return
	}

	go b.replyToMessage(context.Background(), s, m, url)
}

func (b *Discord) replyToMessage(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, url string) {
	ctx, span := tracer.Start(ctx, "discord_reply")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, 45*time.Second)
	defer cancel()

	res, err := b.Resolver.Resolve(ctx, resolve.Request{URL: url, Mode: resolve.ModeAuto})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(1, err.Error())
		return
	}

	reply := b.buildReply(res)

	go b.HideEmbeds(m.ChannelID, m.ID)

	// if there has been a message since then, reply
	if lastMsg := b.lastChannelMessage[m.ChannelID]; lastMsg != m.ID {
		reply.Reference = m.Reference()
	}

	if _, err = s.ChannelMessageSendComplex(m.ChannelID, reply); err != nil {
		slog.Error("channel send message", "channel_id", m.ChannelID, "url", url, "err", err)
	}
}

func (b *Discord) buildReply(res resolve.Result) *discordgo.MessageSend {
	var permalinks []string
	switch res.Kind {
	case resolve.KindPicker:
		for i, item := range res.Items {
			name := fmt.Sprintf("item_%d", i+1)
			permalinks = append(permalinks, b.permalink(item.MediaURL, name))
		}
	default:
		permalinks = append(permalinks, b.permalink(res.Single.MediaURL, res.Single.Filename))
	}

	galleryItems := make([]discordgo.MediaGalleryItem, len(permalinks))
	for i, link := range permalinks {
		galleryItems[i].Media = discordgo.UnfurledMediaItem{URL: link}
	}

	return &discordgo.MessageSend{
		Components: []discordgo.MessageComponent{
			discordgo.MediaGallery{
				Items: galleryItems,
			},
		},
		Flags: discordgo.MessageFlagsIsComponentsV2,
		AllowedMentions: &discordgo.MessageAllowedMentions{
			Parse:       []discordgo.AllowedMentionType{},
			RepliedUser: true,
		},
	}
}

func (b *Discord) permalink(upstream, filename string) string {
	path := b.ProxyURL(upstream, filename)
	return strings.TrimSuffix(b.PublicURL, "/") + path
}

func (b *Discord) HideEmbeds(channelID, msgID string) {
	_, _ = b.session.RequestWithBucketID("PATCH", discordgo.EndpointChannelMessage(channelID, msgID), map[string]int{"flags": 4}, discordgo.EndpointChannelMessage(channelID, ""))
}
