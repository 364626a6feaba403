package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/hkacimi/studymate/internal/backend"
	"github.com/hkacimi/studymate/internal/chat"
	"github.com/hkacimi/studymate/internal/config"
	"github.com/hkacimi/studymate/internal/identity"
	"github.com/hkacimi/studymate/internal/models"
	"github.com/hkacimi/studymate/internal/tokens"
)

// Minimal terminal client: one chat session against the backend, with the
// streamed answer printed as it arrives.
func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	store, err := identity.NewSQLiteStore(cfg.IdentityDBPath)
	if err != nil {
		logger.Fatal("failed to open identity store",
			zap.Error(err),
			zap.String("dbPath", cfg.IdentityDBPath))
	}
	defer store.Close()

	var printed int
	session := chat.NewSession(backend.NewClient(cfg.BackendURL), store, logger,
		chat.WithTokenCounter(tokens.NewCounter()),
		chat.WithOnChange(func(snap chat.Snapshot) {
			// Print the growing tail of the in-progress assistant message.
			if len(snap.Messages) == 0 {
				printed = 0
				return
			}
			last := snap.Messages[len(snap.Messages)-1]
			if last.Role != models.RoleAssistant {
				printed = 0
				return
			}
			if printed > len(last.Content) {
				printed = len(last.Content)
				return
			}
			fmt.Print(last.Content[printed:])
			printed = len(last.Content)
		}),
	)

	fmt.Println("studymate: ask anything, Ctrl+D to quit")
	for _, prompt := range chat.ChatQuickPrompts("en") {
		fmt.Printf("  · %s\n", prompt.Text)
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		session.UpdateDraft(line)
		if err := session.Submit(context.Background(), chat.SubmitOptions{}); err != nil {
			logger.Error("submit failed", zap.Error(err))
		}
		fmt.Println()
	}
}
