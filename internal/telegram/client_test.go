package telegram

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type fakeBot struct {
	sendErrs []error
	sent     []tgbotapi.MessageConfig
	updates  [][]tgbotapi.Update
	pollErr  error
	offsets  []int
	timeouts []int
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig))
	if len(f.sendErrs) > 0 {
		err := f.sendErrs[0]
		f.sendErrs = f.sendErrs[1:]
		if err != nil {
			return tgbotapi.Message{}, err
		}
	}
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func (f *fakeBot) GetUpdates(u tgbotapi.UpdateConfig) ([]tgbotapi.Update, error) {
	f.offsets = append(f.offsets, u.Offset)
	f.timeouts = append(f.timeouts, u.Timeout)
	if f.pollErr != nil {
		return nil, f.pollErr
	}
	if len(f.updates) == 0 {
		return nil, nil
	}
	batch := f.updates[0]
	f.updates = f.updates[1:]
	return batch, nil
}

const chat = int64(2008)

func newTestClient(bot *fakeBot) (*Client, *[]time.Duration) {
	c := newClient(bot, chat, Options{MinGap: time.Nanosecond}, log.New(io.Discard))
	var slept []time.Duration
	c.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return c, &slept
}

func TestSendFormatsHTMLToChat(t *testing.T) {
	bot := &fakeBot{}
	c, slept := newTestClient(bot)

	if !c.Send(context.Background(), "<b>hi</b>") {
		t.Fatal("Send reported failure")
	}
	if len(bot.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(bot.sent))
	}
	msg := bot.sent[0]
	if msg.ChatID != chat || msg.Text != "<b>hi</b>" || msg.ParseMode != tgbotapi.ModeHTML {
		t.Errorf("message = %+v", msg)
	}
	if len(*slept) != 0 {
		t.Errorf("slept %v on first-try success", *slept)
	}
}

func TestSendRetriesThenSucceeds(t *testing.T) {
	bot := &fakeBot{sendErrs: []error{errors.New("502"), nil}}
	c, slept := newTestClient(bot)

	if !c.Send(context.Background(), "x") {
		t.Fatal("Send reported failure")
	}
	if len(bot.sent) != 2 {
		t.Errorf("attempts = %d, want 2", len(bot.sent))
	}
	if len(*slept) != 1 || (*slept)[0] != 5*time.Second {
		t.Errorf("backoff = %v, want one 5s wait", *slept)
	}
}

func TestSendGivesUpAfterThreeAttempts(t *testing.T) {
	fail := errors.New("network down")
	bot := &fakeBot{sendErrs: []error{fail, fail, fail, fail}}
	c, slept := newTestClient(bot)

	if c.Send(context.Background(), "x") {
		t.Fatal("Send reported success")
	}
	if len(bot.sent) != 3 {
		t.Errorf("attempts = %d, want 3", len(bot.sent))
	}
	if len(*slept) != 2 {
		t.Errorf("waits = %d, want 2", len(*slept))
	}
}

func update(id int, chatID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{
		UpdateID: id,
		Message: &tgbotapi.Message{
			Text: text,
			Chat: &tgbotapi.Chat{ID: chatID},
		},
	}
}

func TestPollTracksOffsetAndFiltersChat(t *testing.T) {
	bot := &fakeBot{updates: [][]tgbotapi.Update{
		{
			update(10, chat, " /STATUS "),
			update(11, 999, "/last"),
			{UpdateID: 12},
			update(13, chat, "/Help"),
		},
		{update(14, chat, "/stats")},
	}}
	c, _ := newTestClient(bot)

	got := c.Poll(context.Background())
	want := []string{"/status", "/help"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("first poll = %q, want %q", got, want)
	}

	got = c.Poll(context.Background())
	if len(got) != 1 || got[0] != "/stats" {
		t.Errorf("second poll = %q", got)
	}

	if bot.offsets[0] != 1 || bot.offsets[1] != 14 {
		t.Errorf("offsets = %v, want [1 14]", bot.offsets)
	}
	if bot.timeouts[0] != 1 {
		t.Errorf("long-poll timeout = %d, want 1", bot.timeouts[0])
	}
}

func TestPollErrorYieldsNothing(t *testing.T) {
	bot := &fakeBot{pollErr: errors.New("timeout")}
	c, _ := newTestClient(bot)

	if got := c.Poll(context.Background()); got != nil {
		t.Errorf("Poll = %q, want nil", got)
	}
	if c.offset != 0 {
		t.Errorf("offset advanced to %d on error", c.offset)
	}
}

func TestParseChatID(t *testing.T) {
	if id, err := ParseChatID(" 2008207882 "); err != nil || id != 2008207882 {
		t.Errorf("ParseChatID = %d, %v", id, err)
	}
	if _, err := ParseChatID("chat"); err == nil {
		t.Error("ParseChatID accepted non-numeric id")
	}
}
