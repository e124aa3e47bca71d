package main

import (
	"context"
	"flag"
	"os"
	"time"

	"collab-editor-be/internal/config"
	"collab-editor-be/internal/pkg/logger"
	"collab-editor-be/internal/relay"
	"collab-editor-be/pkg/crdt"
	"collab-editor-be/pkg/extension"
	"collab-editor-be/pkg/session"
	"collab-editor-be/pkg/transport"

	"github.com/fatih/color"
)

// stdoutNavigator reports navigations instead of performing them.
type stdoutNavigator struct{}

func (stdoutNavigator) Navigate(path string, replace bool) {
	color.Yellow("navigate %s (replace=%v)", path, replace)
}

func main() {
	cfg := config.Load()

	url := flag.String("url", cfg.Collab.URL, "collaboration websocket endpoint")
	doc := flag.String("doc", "probe", "document name")
	token := flag.String("token", "", "auth token; signed with JWT_SECRET when empty")
	user := flag.String("user", "session-probe", "user id for a signed token")
	text := flag.String("text", "", "paragraph to append once synced")
	wait := flag.Duration("wait", 10*time.Second, "how long to wait for the first sync")
	flag.Parse()

	if *token == "" {
		if cfg.Auth.JwtSecret == "" {
			color.Red("no -token given and JWT_SECRET is not set")
			os.Exit(2)
		}
		signed, err := relay.NewAuthenticator(cfg.Auth.JwtSecret).Issue(*user, time.Hour)
		if err != nil {
			color.Red("sign token: %v", err)
			os.Exit(1)
		}
		*token = signed
	}

	color.Cyan("Probing %s as %s on %s", *doc, *user, *url)

	loaded := make(chan struct{})
	attempts := session.NewAttemptTracker(cfg.Collab.ReloadAttemptTTL)
	s, err := session.Create(context.Background(), session.Config{
		DocumentName: *doc,
		URL:          *url,
		Token:        *token,
		Editable:     true,
		Workspace: &extension.WorkspaceSettings{
			Marks:  []string{"bold", "italic", "link"},
			Blocks: []string{"heading", "bulletList"},
		},
		Navigator: stdoutNavigator{},
		Recoverer: &session.Recoverer{
			Refresher:  &session.HTTPRefresher{BaseURL: cfg.Auth.SessionURL, Token: *token},
			Navigator:  stdoutNavigator{},
			Reload:     func() { color.Yellow("reload requested") },
			Attempts:   attempts,
			Key:        *doc,
			MaxReloads: cfg.Collab.MaxReloads,
			Logger:     logger.NewNop(),
		},
		OnLoad: func() { close(loaded) },
	})
	if err != nil {
		color.Red("create session: %v", err)
		os.Exit(1)
	}
	defer s.Destroy()

	select {
	case <-loaded:
		color.Green("Status: %s, synced", s.Status())
	case <-time.After(*wait):
		color.Red("Status: %s, not synced after %s (recovery: %v)", s.Status(), *wait, s.Recovery())
		os.Exit(1)
	}

	if *text != "" {
		surface := s.Surface()
		blocks := surface.Document().Snapshot().Children
		after := crdt.RootID
		if len(blocks) > 0 {
			after = blocks[len(blocks)-1].ID
		}
		para, err := surface.InsertBlock(crdt.RootID, after, "paragraph", nil)
		if err == nil {
			_, err = surface.InsertText(para, crdt.RootID, *text)
		}
		if err != nil {
			color.Red("append paragraph: %v", err)
			os.Exit(1)
		}
		// Give the transport a moment to flush the update frame.
		time.Sleep(200 * time.Millisecond)
		color.Green("Appended %q", *text)
	}

	root := s.Document().Snapshot()
	color.Cyan("Document has %d blocks, %d characters", len(root.Children), len([]rune(root.TextContent())))
	if s.Status() != transport.StatusConnected {
		os.Exit(1)
	}
}
