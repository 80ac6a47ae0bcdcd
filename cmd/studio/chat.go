package main

import (
	"fmt"
	"os"
	"strings"

	errors "github.com/Laisky/errors/v2"
	"github.com/spf13/cobra"
	"github.com/suPer8Hu/ai-studio/internal/client"
	"github.com/suPer8Hu/ai-studio/internal/clientsync"
)

var (
	chatServer  string
	chatToken   string
	chatProject string
	chatModel   string
	chatHTML    bool
)

var chatCMD = &cobra.Command{
	Use:   "chat [message]",
	Short: "send one chat turn to a running server and stream the reply",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		token := chatToken
		if token == "" {
			token = os.Getenv("STUDIO_TOKEN")
		}
		if token == "" {
			return errors.New("--token or STUDIO_TOKEN is required")
		}

		c := client.New(chatServer, token, nil)
		projectID := chatProject
		if projectID == "" {
			ps, err := c.ListProjects(cmd.Context())
			if err != nil {
				return err
			}
			if len(ps) == 0 {
				return errors.New("no project available")
			}
			projectID = ps[0].ID
		}

		out := cmd.OutOrStdout()
		r := clientsync.NewStreamRenderer()
		res, err := c.StreamChat(cmd.Context(), client.ChatRequest{
			ProjectID: projectID,
			Message:   strings.Join(args, " "),
			Model:     chatModel,
		}, func(delta string) {
			r.Append(delta)
			if !chatHTML {
				fmt.Fprint(out, delta)
			}
		})
		if chatHTML {
			fmt.Fprintln(out, r.HTML())
		} else {
			fmt.Fprintln(out)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "model: %s\n", res.Model)
		return nil
	},
}

func init() {
	chatCMD.Flags().StringVar(&chatServer, "server", "http://localhost:8080", "studio API base URL")
	chatCMD.Flags().StringVar(&chatToken, "token", "", "session token (default $STUDIO_TOKEN)")
	chatCMD.Flags().StringVar(&chatProject, "project", "", "project id (default: most recent project)")
	chatCMD.Flags().StringVar(&chatModel, "model", "", "model id")
	chatCMD.Flags().BoolVar(&chatHTML, "html", false, "print the reply rendered as html")
	rootCMD.AddCommand(chatCMD)
}
