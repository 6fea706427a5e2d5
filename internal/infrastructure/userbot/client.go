// Package userbot reads public channel history through a Telegram user session.
package userbot

import (
	"context"
	"strconv"
	"sync"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/tg"
	"github.com/rs/zerolog"

	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/channel"
	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/indexer"
	"github.com/facksten/PushRSP-Telegram-bot/internal/utils/platformerrors"
)

type Config struct {
	APIID       int
	APIHash     string
	Phone       string
	SessionFile string
}

// Client is an indexer.Source backed by a gotd MTProto session.
type Client struct {
	client *telegram.Client
	log    zerolog.Logger

	ready    chan struct{}
	api      *tg.Client
	startErr error

	mu    sync.Mutex
	peers map[string]*tg.InputPeerChannel
}

var _ indexer.Source = (*Client)(nil)

func NewClient(cfg Config, log zerolog.Logger) *Client {
	return &Client{
		client: telegram.NewClient(cfg.APIID, cfg.APIHash, telegram.Options{
			SessionStorage: &session.FileStorage{Path: cfg.SessionFile},
		}),
		log:   log.With().Str("component", "userbot").Logger(),
		ready: make(chan struct{}),
		peers: make(map[string]*tg.InputPeerChannel),
	}
}

// Run connects and keeps the session open until ctx is done. The session must already be
// authorized; Fetch calls made before the connection is up wait for it.
func (c *Client) Run(ctx context.Context) error {
	signalled := false
	err := c.client.Run(ctx, func(ctx context.Context) error {
		status, err := c.client.Auth().Status(ctx)
		if err != nil {
			return classify(ctx, "", err)
		}
		if !status.Authorized {
			return platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeUnauthorized,
				"userbot session is not authorized; run `pushtutor userbot-login`", nil, "")
		}
		c.api = c.client.API()
		signalled = true
		close(c.ready)
		c.log.Info().Msg("userbot connected")
		<-ctx.Done()
		return nil
	})
	if !signalled {
		c.startErr = err
		close(c.ready)
	}
	if err != nil && ctx.Err() == nil {
		c.log.Error().Err(err).Msg("userbot session ended")
		return err
	}
	return nil
}

func (c *Client) waitReady(ctx context.Context) (*tg.Client, error) {
	select {
	case <-ctx.Done():
		return nil, platformerrors.AsError(ctx, platformerrors.LayerInfrastructure, ctx.Err(), "userbot not connected")
	case <-c.ready:
	}
	if c.api == nil {
		if c.startErr != nil {
			return nil, c.startErr
		}
		return nil, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeUnauthorized,
			"userbot session is not running", nil, "")
	}
	return c.api, nil
}

// Fetch implements indexer.Source.
func (c *Client) Fetch(ctx context.Context, ref string, offsetID int64, limit int) ([]indexer.SourceMessage, error) {
	api, err := c.waitReady(ctx)
	if err != nil {
		return nil, err
	}
	peer, err := c.resolve(ctx, api, ref)
	if err != nil {
		return nil, err
	}

	res, err := api.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
		Peer:     peer,
		OffsetID: int(offsetID),
		Limit:    limit,
	})
	if err != nil {
		return nil, classify(ctx, ref, err)
	}
	messages := toSourceMessages(historyMessages(res))
	c.log.Debug().Str("channel", ref).Int64("offset_id", offsetID).Int("count", len(messages)).Msg("history page fetched")
	return messages, nil
}

// ChannelInfo returns the title and username Telegram reports for ref.
func (c *Client) ChannelInfo(ctx context.Context, ref string) (title, username string, err error) {
	api, err := c.waitReady(ctx)
	if err != nil {
		return "", "", err
	}
	ch, err := c.lookup(ctx, api, channel.NormalizeRef(ref))
	if err != nil {
		return "", "", err
	}
	return ch.Title, ch.Username, nil
}

func (c *Client) resolve(ctx context.Context, api *tg.Client, ref string) (*tg.InputPeerChannel, error) {
	ref = channel.NormalizeRef(ref)
	c.mu.Lock()
	peer, ok := c.peers[ref]
	c.mu.Unlock()
	if ok {
		return peer, nil
	}

	ch, err := c.lookup(ctx, api, ref)
	if err != nil {
		return nil, err
	}
	peer = &tg.InputPeerChannel{ChannelID: ch.ID, AccessHash: ch.AccessHash}
	c.mu.Lock()
	c.peers[ref] = peer
	c.mu.Unlock()
	return peer, nil
}

func (c *Client) lookup(ctx context.Context, api *tg.Client, ref string) (*tg.Channel, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return c.lookupDialog(ctx, api, ref, bareChannelID(id))
	}

	resolved, err := api.ContactsResolveUsername(ctx, ref)
	if err != nil {
		return nil, classify(ctx, ref, err)
	}
	ch, ok := findChannel(resolved.Chats, 0)
	if !ok {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeNotFound,
			"@"+ref+" is not a channel", nil, "")
	}
	return ch, nil
}

// lookupDialog finds a numeric channel among the session's dialogs; MTProto needs an access
// hash that only a dialog or a username resolution provides.
func (c *Client) lookupDialog(ctx context.Context, api *tg.Client, ref string, id int64) (*tg.Channel, error) {
	res, err := api.MessagesGetDialogs(ctx, &tg.MessagesGetDialogsRequest{
		OffsetPeer: &tg.InputPeerEmpty{},
		Limit:      100,
	})
	if err != nil {
		return nil, classify(ctx, ref, err)
	}
	var chats []tg.ChatClass
	switch d := res.(type) {
	case *tg.MessagesDialogs:
		chats = d.Chats
	case *tg.MessagesDialogsSlice:
		chats = d.Chats
	}
	if ch, ok := findChannel(chats, id); ok {
		return ch, nil
	}
	return nil, platformerrors.NewErrorWithContext(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeNotFound,
		"channel id is not among the userbot's dialogs; join it or use its @username", nil, "",
		map[string]any{"channel": ref})
}

// Disabled is the source used when ENABLE_USERBOT is off. Every fetch fails without retry.
type Disabled struct{}

func (Disabled) Fetch(ctx context.Context, ref string, _ int64, _ int) ([]indexer.SourceMessage, error) {
	return nil, platformerrors.NewErrorWithContext(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeUnauthorized,
		"userbot is disabled; set ENABLE_USERBOT=true and run `pushtutor userbot-login`", nil, "",
		map[string]any{"channel_ref": ref})
}
