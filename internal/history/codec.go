// Package history converts stored conversation turns into the role/part
// form used to seed a model session.
package history

import (
	"log/slog"

	"github.com/shynlabs/shyn/internal/reaction"
	"github.com/shynlabs/shyn/internal/types"
)

// ToSessionTurns maps stored messages to session turns. AI text loses any
// leading reaction marker, attachments are decoded from their data URL,
// and turns that end up with zero parts are dropped. An undecodable
// attachment drops only the attachment part; accompanying text survives.
func ToSessionTurns(messages []types.ChatMessage) []types.SessionTurn {
	turns := make([]types.SessionTurn, 0, len(messages))
	for _, msg := range messages {
		turn := types.SessionTurn{Role: roleFor(msg.Sender)}

		text := msg.Text
		if msg.Sender == types.SenderAI {
			text = reaction.Strip(text)
		}
		if text != "" {
			turn.Parts = append(turn.Parts, types.Part{Text: text})
		}

		if msg.Attachment != nil {
			data, err := msg.Attachment.Payload()
			if err != nil {
				slog.Warn("dropping malformed attachment from history",
					"attachment", msg.Attachment.Name, "error", err.Error())
			} else if len(data) > 0 {
				turn.Parts = append(turn.Parts, types.Part{
					Data:     data,
					MIMEType: msg.Attachment.Type,
				})
			}
		}

		if len(turn.Parts) == 0 {
			continue
		}
		turns = append(turns, turn)
	}
	return turns
}

func roleFor(sender types.Sender) string {
	if sender == types.SenderUser {
		return "user"
	}
	return "model"
}
