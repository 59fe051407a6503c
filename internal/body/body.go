// Package body encodes Discord message identity into GitHub issue and
// comment bodies and recovers it again. The encoded link is the only
// persistence the bridge has: on restart the thread mapping is rebuilt
// by decoding every issue and comment body in the repository.
package body

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/gitcord/gitcord/internal/models"
)

// linkPattern matches the canonical message link the encoder embeds.
// The trailing ")" is the markdown link terminator the rendering
// guarantees, so a bare URL pasted by a human does not match. The
// search is unanchored: humans edit bodies around the footer.
var linkPattern = regexp.MustCompile(`https://discord\.com/channels/(\d+)/(\d+)/(\d+)\)`)

// Encode renders a Discord message as a GitHub body: a quoted author
// header whose avatar badge and name both link back to the message,
// the message content, and any image attachments as markdown images.
func Encode(msg models.ChatMessage) string {
	link := fmt.Sprintf("https://discord.com/channels/%s/%s/%s",
		msg.GuildID, msg.ChannelID, msg.ID)
	avatar := fmt.Sprintf("https://cdn.discordapp.com/avatars/%s/%s.webp?size=40",
		msg.Author.ID, msg.Author.Avatar)

	var b strings.Builder
	fmt.Fprintf(&b, "<kbd>[![%s](%s)](%s)</kbd> [%s](%s)  `BOT`\n\n",
		msg.Author.DisplayName, avatar, link, msg.Author.DisplayName, link)
	b.WriteString(msg.Content)
	b.WriteString("\n")
	b.WriteString(attachmentsToMarkdown(msg.Attachments))
	b.WriteString("\n")
	return b.String()
}

// Decode extracts the originating Discord channel and message IDs from
// a GitHub body. ok is false when the body carries no encoded link,
// which means the body was written by a human, not by the bridge.
func Decode(body string) (channelID, messageID string, ok bool) {
	match := linkPattern.FindStringSubmatch(body)
	if len(match) != 4 {
		return "", "", false
	}
	return match[2], match[3], true
}

func attachmentsToMarkdown(attachments []models.Attachment) string {
	var b strings.Builder
	for _, a := range attachments {
		switch a.ContentType {
		case "image/png", "image/jpeg":
			fmt.Fprintf(&b, "![%s](%s '%s')", a.Name, a.URL, a.Name)
		}
	}
	return b.String()
}
