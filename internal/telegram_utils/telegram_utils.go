package telegram_utils

import (
	"strings"
	"unicode/utf8"

	tele "gopkg.in/telebot.v3"
)

const MaxTelegramMessageLength = 4096

// EditThreshold is the minimum growth of the accumulated answer, in bytes,
// before the preview message is edited again. Telegram throttles edits hard.
const EditThreshold = 100

// Streamer renders a growing answer as a single Telegram message edited in
// place. SendPartial throttles edits; Finish always flushes the final text.
type Streamer struct {
	c         tele.Context
	replyTo   *tele.Message
	parseMode tele.ParseMode

	current  *tele.Message
	prevLen  int
	lastSent string
}

func NewStreamer(c tele.Context, replyTo *tele.Message, parseMode tele.ParseMode) *Streamer {
	return &Streamer{c: c, replyTo: replyTo, parseMode: parseMode}
}

func (s *Streamer) SendPartial(answer string) error {
	answer = truncate(answer)
	if len(answer)-s.prevLen < EditThreshold {
		return nil
	}
	return s.send(answer)
}

func (s *Streamer) Finish(answer string) error {
	answer = truncate(answer)
	if answer == s.lastSent {
		return nil
	}
	return s.send(answer)
}

func (s *Streamer) send(answer string) error {
	if answer == "" {
		return nil
	}
	s.prevLen = len(answer)
	s.lastSent = answer

	var err error
	if s.current == nil {
		s.current, err = s.c.Bot().Reply(s.replyTo, s.render(answer), &tele.SendOptions{ParseMode: s.parseMode})
		if err != nil {
			s.current, err = s.c.Bot().Reply(s.replyTo, answer, &tele.SendOptions{ParseMode: tele.ModeDefault})
		}
		return err
	}

	_, err = s.c.Bot().Edit(s.current, s.render(answer), &tele.SendOptions{ParseMode: s.parseMode})
	if err != nil {
		_, err = s.c.Bot().Edit(s.current, answer, &tele.SendOptions{ParseMode: tele.ModeDefault})
	}
	return err
}

func (s *Streamer) render(answer string) string {
	if s.parseMode == tele.ModeMarkdown {
		return FixMarkdown(answer)
	}
	return answer
}

func truncate(answer string) string {
	if len(answer) <= MaxTelegramMessageLength {
		return answer
	}
	// never cut a rune in half
	cut := MaxTelegramMessageLength
	for cut > 0 && !utf8.RuneStart(answer[cut]) {
		cut--
	}
	return answer[:cut]
}

// ParseModeFor maps a configured parse mode name onto telebot's constants.
func ParseModeFor(name string) tele.ParseMode {
	switch name {
	case "html":
		return tele.ModeHTML
	case "":
		return tele.ModeDefault
	default:
		return tele.ModeMarkdown
	}
}

// GetUnclosedTag finds a markdown tag left open in a partial message.
func GetUnclosedTag(markdown string) string {
	// order is important!
	var tags = []string{
		"```",
		"`",
		"*",
		"_",
	}
	var currentTag = ""

	markdownRunes := []rune(markdown)

	var i = 0
outer:
	for i < len(markdownRunes) {
		// skip escaped characters (only outside tags)
		if markdownRunes[i] == '\\' && currentTag == "" {
			i += 2
			continue
		}
		if currentTag != "" {
			if strings.HasPrefix(string(markdownRunes[i:]), currentTag) {
				// turn a tag off
				i += len(currentTag)
				currentTag = ""
				continue
			}
		} else {
			for _, tag := range tags {
				if strings.HasPrefix(string(markdownRunes[i:]), tag) {
					// turn a tag on
					currentTag = tag
					i += len(currentTag)
					continue outer
				}
			}
		}
		i++
	}

	return currentTag
}

func IsValid(markdown string) bool {
	return GetUnclosedTag(markdown) == ""
}

// FixMarkdown closes a dangling tag so partial messages stay renderable.
func FixMarkdown(markdown string) string {
	tag := GetUnclosedTag(markdown)
	if tag == "" {
		return markdown
	}
	return markdown + tag
}
