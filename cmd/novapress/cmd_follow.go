package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"novapress/internal/display"
	"novapress/internal/follow"
	"novapress/internal/format"
)

var followFlags struct {
	notify bool
}

var followCmd = &cobra.Command{
	Use:   "follow",
	Short: "Follow stories and check them for updates",
}

var followAddCmd = &cobra.Command{
	Use:   "add <synthesis-id>",
	Short: "Follow a synthesis (at most 20; the oldest is dropped)",
	Args:  cobra.ExactArgs(1),
	RunE:  runFollowAdd,
}

var followRemoveCmd = &cobra.Command{
	Use:     "remove <synthesis-id>",
	Aliases: []string{"rm"},
	Short:   "Stop following a synthesis",
	Args:    cobra.ExactArgs(1),
	RunE:    runFollowRemove,
}

var followListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List followed stories, most recent first",
	Args:    cobra.NoArgs,
	RunE:    runFollowList,
}

var followCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Fetch every followed story and report those that changed",
	Args:  cobra.NoArgs,
	RunE:  runFollowCheck,
}

func init() {
	followAddCmd.Flags().BoolVar(&followFlags.notify, "notify", true, "Report this story in 'follow check' when it changes")
	followCmd.AddCommand(followAddCmd, followRemoveCmd, followListCmd, followCheckCmd)
}

func runFollowAdd(cmd *cobra.Command, args []string) error {
	a, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	syn, err := a.client.Syntheses().Get(cmd.Context(), args[0])
	if err != nil {
		return apiFailure(err)
	}
	evicted, err := a.follows.Follow(follow.Story{
		SynthesisID:    syn.ID,
		Title:          syn.Title,
		Category:       syn.Category,
		NarrativePhase: syn.NarrativePhase,
		NotifyOnUpdate: followFlags.notify,
	})
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Suivi : "+syn.Title)
	if evicted != nil {
		fmt.Fprintf(out, "Limite de %d atteinte, plus suivi : %s\n", follow.MaxStories, evicted.Title)
	}
	return nil
}

func runFollowRemove(cmd *cobra.Command, args []string) error {
	a, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.follows.Unfollow(args[0]); err != nil {
		if errors.Is(err, follow.ErrNotFollowed) {
			return fmt.Errorf("%s n'est pas suivi: %w", args[0], err)
		}
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Plus suivi : "+args[0])
	return nil
}

func runFollowList(cmd *cobra.Command, _ []string) error {
	a, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	stories, err := a.follows.List()
	if err != nil {
		return err
	}
	if stories == nil {
		stories = []follow.Story{}
	}
	now := time.Now()
	return a.emit(cmd.OutOrStdout(), stories, func() string {
		if len(stories) == 0 {
			return "Aucune histoire suivie.\n"
		}
		tb := format.NewTable(a.tableMode())
		tb.Header("ID", "Titre", "Catégorie", "Phase", "Suivi", "Mise à jour", "Alerte")
		for _, s := range stories {
			updated := "—"
			if s.LastUpdated != nil {
				updated = display.RelTime(*s.LastUpdated, now)
			}
			tb.Row(s.SynthesisID, s.Title, display.Category(s.Category), display.Phase(s.NarrativePhase),
				display.RelTime(s.FollowedAt, now), updated, format.BoolMark(s.NotifyOnUpdate))
		}
		tb.Footer("", fmt.Sprintf("%d / %d", len(stories), follow.MaxStories), "", "", "", "", "")
		tb.Columns(format.ColumnConfig{Number: 2, MaxWidth: 50})
		return tb.String() + "\n"
	})
}

func runFollowCheck(cmd *cobra.Command, _ []string) error {
	a, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	updates, checkErr := a.follows.CheckUpdates(cmd.Context(), a.client.Syntheses())
	if checkErr != nil && cmd.Context().Err() != nil {
		return checkErr
	}
	err = a.emit(cmd.OutOrStdout(), updates, func() string {
		if len(updates) == 0 {
			return "Aucune mise à jour.\n"
		}
		var out string
		for _, u := range updates {
			line := "• " + u.Story.Title
			if u.Story.NarrativePhase != "" {
				line += " (" + display.Phase(u.Story.NarrativePhase) + ")"
			}
			if u.Story.LastUpdated != nil {
				line += " · " + display.Since(*u.Story.LastUpdated)
			}
			out += line + "\n"
		}
		return out
	})
	if err != nil {
		return err
	}
	if checkErr != nil {
		return apiFailure(checkErr)
	}
	return nil
}
