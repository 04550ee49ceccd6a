package cli

import (
	"context"
	"fmt"

	"github.com/RyanW02/chainsocial/internal/prompt"
	"github.com/RyanW02/chainsocial/pkg/interaction"
	"github.com/RyanW02/chainsocial/pkg/session"
	"github.com/RyanW02/chainsocial/pkg/types/social"
	"github.com/manifoldco/promptui"
	"go.uber.org/zap"
)

func back() error {
	return nil
}

func (c *Client) OpenMainMenu() error {
	active, err := c.Social.Active()
	if err != nil {
		return prompt.SelectAndExecute("Not connected",
			prompt.NewSelectOption("Connect", "🔑", c.OpenConnectMenu),
			prompt.NewSelectOption("Quit", "❌ ", quit), // Extra space in emoji name needed
		)
	}

	return prompt.SelectAndExecute(fmt.Sprintf("Connected as %s", active.Session.Identity().Short()),
		prompt.NewSelectOption("Feed", "📰", c.OpenFeed),
		prompt.NewSelectOption("Discover users", "🔍", c.OpenDiscover),
		prompt.NewSelectOption("My profile", "👤", func() error {
			return c.OpenProfile(active.Session.Identity())
		}),
		prompt.NewSelectOption("Create post", "📝", c.HandleCreatePost),
		prompt.NewSelectOption("Update avatar", "🖼️", c.HandleUpdateAvatar),
		prompt.NewSelectOption("Register", "\U0001FAAA", c.HandleRegister),
		prompt.NewSelectOption("Pending writes", "⏳", c.OpenPendingWrites),
		prompt.NewSelectOption("Disconnect", "🔌", func() error {
			c.Social.Disconnect()
			return nil
		}),
		prompt.NewSelectOption("Quit", "❌ ", quit),
	)
}

// quit unwinds to the menu loop the same way ctrl+c does.
func quit() error {
	return promptui.ErrInterrupt
}

func (c *Client) OpenConnectMenu() error {
	return prompt.SelectAndExecute("Choose a private key",
		prompt.NewSelectOption(fmt.Sprintf("Use %s", c.Config.Client.KeyFile), "🔑", func() error {
			return c.connect(c.Config.Client.KeyFile, false)
		}),
		prompt.NewSelectOption("Load from file", "📥", func() error {
			keyFile, err := prompt.Text("Private key file", prompt.FileExists)
			if err != nil {
				return err
			}

			return c.connect(keyFile, false)
		}),
		prompt.NewSelectOption("Generate new key", "🌱", func() error {
			keyFile, err := prompt.TextWithDefault("Save the new key to", c.Config.Client.KeyFile, prompt.NotBlank)
			if err != nil {
				return err
			}

			if err := prompt.FileExists(keyFile); err == nil {
				return fmt.Errorf("%s already exists", keyFile)
			}

			return c.connect(keyFile, true)
		}),
		prompt.NewSelectOption("Back", "⬅️", back),
	)
}

func (c *Client) connect(keyFile string, generate bool) error {
	key, created, err := session.LoadOrGenerateKey(keyFile, generate)
	if err != nil {
		return err
	}

	if created {
		c.Logger.Info("Generated private key", zap.String("key_file", keyFile))
	}

	ctx, cancel := c.readContext()
	defer cancel()

	active, err := c.Social.Connect(ctx, key)
	if err != nil {
		return err
	}

	resumed := len(active.Mutations.InFlight())
	message := fmt.Sprintf("Connected as %s", active.Session.Identity())
	if resumed > 0 {
		message += fmt.Sprintf("\nResumed %d pending writes", resumed)
	}

	return prompt.Display("Connected", message)
}

func (c *Client) OpenFeed() error {
	active, err := c.Social.Active()
	if err != nil {
		return err
	}

	ctx, cancel := c.readContext()
	defer cancel()

	feed, err := active.Feed.Build(ctx, active.Session)
	if err != nil {
		return err
	}

	label := fmt.Sprintf("Feed (%d posts)", len(feed.Posts))
	if feed.FailedSources > 0 {
		label += fmt.Sprintf(", %d of %d authors unavailable", feed.FailedSources, feed.Sources)
	}

	return prompt.SelectAndExecute(label, c.postOptions(feed.Posts, c.OpenFeed)...)
}

func (c *Client) postOptions(posts []interaction.PostView, reload func() error) []prompt.SelectOption {
	options := make([]prompt.SelectOption, 0, len(posts)+2)
	for _, view := range posts {
		view := view
		options = append(options, prompt.NewSelectOption(postLabel(view), "", func() error {
			if view.Placeholder {
				return prompt.DisplayMarshalled("Post being created", view.Post)
			}

			return c.OpenPostActions(view.Post.Key())
		}))
	}

	options = append(options,
		prompt.NewSelectOption("Refresh", "🔄", reload),
		prompt.NewSelectOption("Back", "⬅️", back),
	)

	return options
}

// OpenPostActions re-renders the post from the store on every visit, so that it reflects mutations made from the
// menu itself.
func (c *Client) OpenPostActions(key social.PostKey) error {
	active, err := c.Social.Active()
	if err != nil {
		return err
	}

	list, ok := active.Store.Posts().Get(key.Owner)
	if !ok {
		return fmt.Errorf("post %s is not loaded", key)
	}

	post, ok := list.Find(key.PostID)
	if !ok {
		return fmt.Errorf("post %s no longer exists", key)
	}

	view := active.Store.RenderPost(post)
	reopen := func() error {
		return c.OpenPostActions(key)
	}

	likeOption := prompt.NewSelectOption("Like", "♥", func() error {
		return c.submit(active.Mutations.Like(context.Background(), active.Session, key))
	})
	if view.Liked {
		likeOption = prompt.NewSelectOption("Unlike", "♡", func() error {
			return c.submit(active.Mutations.Unlike(context.Background(), active.Session, key))
		})
	}

	options := []prompt.SelectOption{
		likeOption,
		prompt.NewSelectOption("Comment", "💬", func() error {
			text, err := prompt.Text("Comment", prompt.NotBlank)
			if err != nil {
				return err
			}

			return c.submit(active.Mutations.Comment(context.Background(), active.Session, key, text))
		}),
		prompt.NewSelectOption("View comments", "📜", func() error {
			if err := c.showComments(key); err != nil {
				return err
			}

			return reopen()
		}),
		prompt.NewSelectOption("View likers", "👥", func() error {
			if err := c.showLikers(key); err != nil {
				return err
			}

			return reopen()
		}),
	}

	if view.MediaURI != "" {
		options = append(options, prompt.NewSelectOption("Show media link", "🖼️", func() error {
			return prompt.Display("Media", view.MediaURI)
		}))
	}

	if key.Owner == active.Session.Identity() {
		options = append(options, prompt.NewSelectOption("Delete", "🗑️", func() error {
			confirmed, err := prompt.Confirm("Delete this post")
			if err != nil || !confirmed {
				return err
			}

			return c.submit(active.Mutations.DeletePost(context.Background(), active.Session, key.PostID))
		}))
	}

	options = append(options, prompt.NewSelectOption("Back", "⬅️", back))
	return prompt.SelectAndExecute(postLabel(view), options...)
}

func (c *Client) showComments(key social.PostKey) error {
	active, err := c.Social.Active()
	if err != nil {
		return err
	}

	ctx, cancel := c.readContext()
	defer cancel()

	thread, err := active.Feed.Comments(ctx, active.Session, key)
	if err != nil {
		return err
	}

	options := make([]prompt.SelectOption, 0, len(thread.Comments)+len(thread.Pending)+1)
	for _, comment := range thread.Comments {
		comment := comment
		options = append(options, prompt.NewSelectOption(commentLabel(comment, false), "", func() error {
			return prompt.DisplayMarshalled("Comment", comment)
		}))
	}

	for _, comment := range thread.Pending {
		comment := comment
		options = append(options, prompt.NewSelectOption(commentLabel(comment, true), "", func() error {
			return prompt.DisplayMarshalled("Comment (awaiting confirmation)", comment)
		}))
	}

	options = append(options, prompt.NewSelectOption("Back", "⬅️", back))
	return prompt.SelectAndExecute(fmt.Sprintf("%d comments", len(options)-1), options...)
}

func (c *Client) showLikers(key social.PostKey) error {
	active, err := c.Social.Active()
	if err != nil {
		return err
	}

	ctx, cancel := c.readContext()
	defer cancel()

	likers, err := active.Feed.Likers(ctx, active.Session, key)
	if err != nil {
		return err
	}

	return prompt.DisplayMarshalled(fmt.Sprintf("%d likers", len(likers)), likers)
}

func (c *Client) OpenDiscover() error {
	active, err := c.Social.Active()
	if err != nil {
		return err
	}

	ctx, cancel := c.readContext()
	defer cancel()

	directory, err := active.Feed.Discover(ctx, active.Session)
	if err != nil {
		return err
	}

	options := make([]prompt.SelectOption, 0, len(directory.Users)+1)
	for _, user := range directory.Users {
		id := user.Identity
		options = append(options, prompt.NewSelectOption(profileLabel(user), "", func() error {
			return c.OpenProfile(id)
		}))
	}

	options = append(options, prompt.NewSelectOption("Back", "⬅️", back))

	label := fmt.Sprintf("%d users", len(directory.Users))
	if directory.Failed > 0 {
		label += fmt.Sprintf(", %d unavailable", directory.Failed)
	}

	return prompt.SelectAndExecute(label, options...)
}

func (c *Client) OpenProfile(id social.Identity) error {
	active, err := c.Social.Active()
	if err != nil {
		return err
	}

	ctx, cancel := c.readContext()
	defer cancel()

	page, err := active.Feed.ProfilePage(ctx, active.Session, id)
	if err != nil {
		return err
	}

	reopen := func() error {
		return c.OpenProfile(id)
	}

	options := []prompt.SelectOption{
		prompt.NewSelectOption("Details", "ℹ️", func() error {
			if err := prompt.DisplayMarshalled("Profile", page.Profile); err != nil {
				return err
			}

			return reopen()
		}),
		prompt.NewSelectOption(fmt.Sprintf("Posts (%d)", len(page.Posts)), "📰", func() error {
			return prompt.SelectAndExecute("Posts", c.postOptions(page.Posts, reopen)...)
		}),
		prompt.NewSelectOption(fmt.Sprintf("Followers (%d)", len(page.Followers)), "👥", func() error {
			return prompt.DisplayMarshalled("Followers", page.Followers)
		}),
		prompt.NewSelectOption(fmt.Sprintf("Following (%d)", len(page.Following)), "👣", func() error {
			return prompt.DisplayMarshalled("Following", page.Following)
		}),
	}

	if id != active.Session.Identity() {
		if page.Profile.Following {
			options = append(options, prompt.NewSelectOption("Unfollow", "➖", func() error {
				return c.submit(active.Mutations.Unfollow(context.Background(), active.Session, id))
			}))
		} else {
			options = append(options, prompt.NewSelectOption("Follow", "➕", func() error {
				return c.submit(active.Mutations.Follow(context.Background(), active.Session, id))
			}))
		}
	}

	options = append(options, prompt.NewSelectOption("Back", "⬅️", back))
	return prompt.SelectAndExecute(profileLabel(page.Profile), options...)
}

func (c *Client) HandleCreatePost() error {
	active, err := c.Social.Active()
	if err != nil {
		return err
	}

	content, err := prompt.Text("Content", prompt.NotBlank)
	if err != nil {
		return err
	}

	mediaRef, err := prompt.Text("Media (CID, ipfs:// or https:// link, blank for none)", prompt.MediaReference(c.Social.Resolver()))
	if err != nil {
		return err
	}

	return c.submit(active.Mutations.CreatePost(context.Background(), active.Session, content, mediaRef))
}

func (c *Client) HandleUpdateAvatar() error {
	active, err := c.Social.Active()
	if err != nil {
		return err
	}

	avatarRef, err := prompt.Text("Avatar (CID, ipfs:// or https:// link)", prompt.NotBlank, prompt.MediaReference(c.Social.Resolver()))
	if err != nil {
		return err
	}

	return c.submit(active.Mutations.UpdateProfile(context.Background(), active.Session, avatarRef))
}

func (c *Client) HandleRegister() error {
	active, err := c.Social.Active()
	if err != nil {
		return err
	}

	username, err := prompt.Text("Username", prompt.LengthBetween(1, 32))
	if err != nil {
		return err
	}

	bio, err := prompt.Text("Bio", prompt.LengthBetween(0, 256))
	if err != nil {
		return err
	}

	return c.submit(active.Mutations.Register(context.Background(), active.Session, username, bio))
}

func (c *Client) OpenPendingWrites() error {
	active, err := c.Social.Active()
	if err != nil {
		return err
	}

	inFlight := active.Mutations.InFlight()
	options := make([]prompt.SelectOption, 0, len(inFlight)+2)
	for _, p := range inFlight {
		p := p
		options = append(options, prompt.NewSelectOption(pendingLabel(p), "", func() error {
			return c.await(p)
		}))
	}

	options = append(options,
		prompt.NewSelectOption("Refresh", "🔄", c.OpenPendingWrites),
		prompt.NewSelectOption("Back", "⬅️", back),
	)

	return prompt.SelectAndExecute(fmt.Sprintf("%d pending writes", len(inFlight)), options...)
}
