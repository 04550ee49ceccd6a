package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/RyanW02/chainsocial/internal/prompt"
	"github.com/RyanW02/chainsocial/pkg/interaction"
	"github.com/RyanW02/chainsocial/pkg/mutation"
	"github.com/RyanW02/chainsocial/pkg/types/social"
)

const previewLength = 48

func preview(content string) string {
	content = strings.Join(strings.Fields(content), " ")

	runes := []rune(content)
	if len(runes) > previewLength {
		return string(runes[:previewLength-1]) + "…"
	}

	return content
}

func postLabel(view interaction.PostView) string {
	var b strings.Builder
	b.WriteString(view.Owner.Short())
	b.WriteString(": ")
	b.WriteString(preview(view.Content))

	if view.Placeholder {
		b.WriteString(" (posting)")
		return b.String()
	}

	heart := "♡"
	if view.Liked {
		heart = "♥"
	}

	fmt.Fprintf(&b, " [%s %d, 💬 %d]", heart, view.LikesCount, view.CommentsCount)
	if view.Syncing {
		b.WriteString(" ⏳")
	}

	return b.String()
}

func profileLabel(view interaction.ProfileView) string {
	name := view.Username
	if name == "" {
		name = "(unregistered)"
	}

	label := fmt.Sprintf("%s (%s), %d followers", name, view.Identity.Short(), view.FollowerCount)
	switch {
	case view.FollowPending && view.Following:
		label += ", following ⏳"
	case view.FollowPending:
		label += ", unfollowing ⏳"
	case view.Following:
		label += ", following"
	}

	return label
}

func commentLabel(comment social.Comment, pending bool) string {
	label := comment.Commenter.Short() + ": " + preview(comment.Content)
	if pending {
		label += " ⏳"
	}

	return label
}

func pendingLabel(p *mutation.Pending) string {
	label := fmt.Sprintf("#%d %s %s: %s", p.Seq, p.Kind, p.Key.Entity, p.State())
	if hash := p.TxHash(); hash != "" {
		label += " (" + hash[:min(len(hash), 12)] + ")"
	}

	return label
}

// resultMessage describes how a mutation the user waited on ended.
func resultMessage(p *mutation.Pending, err error) string {
	switch {
	case err == nil:
		return fmt.Sprintf("%s confirmed", p.Kind)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return fmt.Sprintf("%s is still pending, check pending writes for its outcome", p.Kind)
	case errors.Is(err, mutation.ErrClosed):
		return fmt.Sprintf("%s is still pending, it will be resumed on the next connect", p.Kind)
	default:
		return fmt.Sprintf("%s failed and was rolled back: %s", p.Kind, err.Error())
	}
}

func displayResult(p *mutation.Pending, err error) error {
	return prompt.Display("Result", resultMessage(p, err))
}
