package maxbot

import (
	"regexp"

	"maxbridge/internal/maxapi"
)

// compileMentionPattern matches @username case-insensitively on word
// boundaries, so "@mybot," and "hey @MyBot" match but "@mybotnot" does not.
func compileMentionPattern(username string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(^|[^\w])@` + regexp.QuoteMeta(username) + `\b`)
}

// isMentioned reports whether the message addresses the bot, either by an
// @username match in the text or by replying to one of the bot's own
// messages.
func (c *Channel) isMentioned(text string, link *maxapi.LinkedMessage) bool {
	if c.mentionRe != nil && c.mentionRe.MatchString(text) {
		return true
	}
	if link != nil && link.Type == "reply" && c.bot != nil && link.Sender.UserID == c.bot.UserID {
		return true
	}
	return false
}
