package adapter

import (
	"bytes"
	"context"
	"fmt"
	"io"

	tele "gopkg.in/telebot.v4"

	kit "pacebot/internal/transport"
)

// maxDownload bounds photos fetched for /dpchange and friends.
const maxDownload = 20 << 20

// wait blocks on the per-bot limiter. The limiter is local politeness only;
// Telegram's own flood limits still surface as rate-limited errors.
func (a *Adapter) wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if a.limiter == nil {
		return nil
	}
	return a.limiter.Wait(ctx)
}

func (a *Adapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	if opt == nil {
		opt = &kit.SendOptions{}
	}
	chat := &tele.Chat{ID: to.ChatID}

	var first kit.MessageRef
	for i, chunk := range splitText(text, textLimit) {
		if err := a.wait(ctx); err != nil {
			return first, err
		}
		sendOpt := &tele.SendOptions{
			ParseMode:             opt.ParseMode,
			DisableWebPagePreview: opt.DisablePreview,
			ThreadID:              to.ThreadID,
		}
		if i == 0 {
			if opt.ReplyTo != 0 {
				sendOpt.ReplyTo = &tele.Message{ID: opt.ReplyTo, Chat: chat}
			}
			if rm, ok := opt.ReplyMarkupAdapter.(*tele.ReplyMarkup); ok {
				sendOpt.ReplyMarkup = rm
			}
		}
		msg, err := a.bot.Send(chat, chunk, sendOpt)
		if err != nil {
			return first, classify(err)
		}
		if i == 0 {
			first = kit.MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID, MessageID: msg.ID}
		}
	}
	return first, nil
}

func (a *Adapter) SendPhoto(ctx context.Context, to kit.ChatTarget, img []byte, caption string) (kit.MessageRef, error) {
	if err := a.wait(ctx); err != nil {
		return kit.MessageRef{}, err
	}
	p := &tele.Photo{File: tele.FromReader(bytes.NewReader(img)), Caption: caption}
	msg, err := a.bot.Send(&tele.Chat{ID: to.ChatID}, p, &tele.SendOptions{ThreadID: to.ThreadID})
	if err != nil {
		return kit.MessageRef{}, classify(err)
	}
	return kit.MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID, MessageID: msg.ID}, nil
}

func (a *Adapter) SetChatTitle(ctx context.Context, chatID int64, title string) error {
	if err := a.wait(ctx); err != nil {
		return err
	}
	return classify(a.bot.SetGroupTitle(&tele.Chat{ID: chatID}, title))
}

func (a *Adapter) SetChatPhoto(ctx context.Context, chatID int64, img []byte) error {
	if err := a.wait(ctx); err != nil {
		return err
	}
	p := &tele.Photo{File: tele.FromReader(bytes.NewReader(img))}
	return classify(a.bot.SetGroupPhoto(&tele.Chat{ID: chatID}, p))
}

func (a *Adapter) LeaveChat(ctx context.Context, chatID int64) error {
	if err := a.wait(ctx); err != nil {
		return err
	}
	return classify(a.bot.Leave(&tele.Chat{ID: chatID}))
}

func (a *Adapter) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	if err := a.wait(ctx); err != nil {
		return nil, err
	}
	rc, err := a.bot.File(&tele.File{FileID: fileID})
	if err != nil {
		return nil, classify(err)
	}
	defer rc.Close()

	b, err := io.ReadAll(io.LimitReader(rc, maxDownload+1))
	if err != nil {
		return nil, classify(err)
	}
	if len(b) > maxDownload {
		return nil, fmt.Errorf("file %s exceeds %d bytes", fileID, maxDownload)
	}
	return b, nil
}

func (a *Adapter) EditText(ctx context.Context, ref kit.MessageRef, text string, opt *kit.SendOptions) error {
	if opt == nil {
		opt = &kit.SendOptions{}
	}
	chunks := splitText(text, textLimit)

	if err := a.wait(ctx); err != nil {
		return err
	}
	m := &tele.Message{ID: ref.MessageID, Chat: &tele.Chat{ID: ref.ChatID}}
	sendOpt := &tele.SendOptions{ParseMode: opt.ParseMode, DisableWebPagePreview: opt.DisablePreview}
	if rm, ok := opt.ReplyMarkupAdapter.(*tele.ReplyMarkup); ok {
		sendOpt.ReplyMarkup = rm
	}
	if _, err := a.bot.Edit(m, chunks[0], sendOpt); err != nil {
		return classify(err)
	}

	// Overflow goes out as follow-up messages.
	if len(chunks) > 1 {
		to := kit.ChatTarget{ChatID: ref.ChatID, ThreadID: ref.ThreadID}
		for _, chunk := range chunks[1:] {
			plain := *opt
			plain.ReplyMarkupAdapter = nil
			if _, err := a.SendText(ctx, to, chunk, &plain); err != nil {
				return err
			}
		}
	}
	return nil
}

func (a *Adapter) AnswerCallback(ctx context.Context, callbackID string, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return classify(a.bot.Respond(&tele.Callback{ID: callbackID}, &tele.CallbackResponse{Text: text}))
}
