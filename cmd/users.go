package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cmena/presente/internal/config"
	"github.com/cmena/presente/internal/database/postgres"
	"github.com/cmena/presente/internal/gallery"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage enrolled students",
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrolled persons with embedding and attendance counts",
	RunE:  runUsersList,
}

var usersDeleteCmd = &cobra.Command{
	Use:   "delete <person-id>",
	Short: "Delete a person with their embeddings and attendance records",
	Args:  cobra.ExactArgs(1),
	RunE:  runUsersDelete,
}

var usersDuplicatesCmd = &cobra.Command{
	Use:   "duplicates",
	Short: "Find pairs of enrolled persons with suspiciously similar embeddings",
	Long: `Search the embedding gallery for entries of different persons that sit
closer than the matching tolerance. Such pairs are usually the same
student enrolled twice under different names.`,
	RunE: runUsersDuplicates,
}

func init() {
	rootCmd.AddCommand(usersCmd)
	usersCmd.AddCommand(usersListCmd)
	usersCmd.AddCommand(usersDeleteCmd)
	usersCmd.AddCommand(usersDuplicatesCmd)

	usersDeleteCmd.Flags().Bool("yes", false, "Skip confirmation prompt")
	usersDuplicatesCmd.Flags().Float64("threshold", 0, "Distance threshold (defaults to MATCH_TOLERANCE)")
}

func confirmAction(prompt string) bool {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	response, _ := reader.ReadString('\n')
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}

func openStore(ctx context.Context) (*postgres.Store, *config.Config, error) {
	cfg := config.Load()
	if cfg.Database.URL == "" {
		return nil, nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}
	store, err := postgres.Initialize(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	return store, cfg, nil
}

func runUsersList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	store, _, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	persons, err := store.ListPersons(ctx)
	if err != nil {
		return err
	}
	if len(persons) == 0 {
		fmt.Println("No persons enrolled.")
		return nil
	}

	fmt.Printf("%-5s %-24s %-28s %-8s %-10s %s\n", "ID", "UID", "Name", "Role", "Photos", "Records")
	for _, p := range persons {
		embeddings, err := store.CountEmbeddings(ctx, p.ID)
		if err != nil {
			return err
		}
		records, err := store.CountByPerson(ctx, p.ID)
		if err != nil {
			return err
		}
		fmt.Printf("%-5d %-24s %-28s %-8s %-10d %d\n", p.ID, p.UID, p.FullName(), p.Role, embeddings, records)
	}
	return nil
}

func runUsersDelete(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid person id %q", args[0])
	}

	ctx := context.Background()
	store, _, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	person, err := store.GetPerson(ctx, id)
	if err != nil {
		return err
	}
	if person == nil {
		return fmt.Errorf("person %d not found", id)
	}

	if !mustGetBool(cmd, "yes") {
		prompt := fmt.Sprintf("Delete %s (%s) with all embeddings and attendance records? [y/N] ",
			person.FullName(), person.UID)
		if !confirmAction(prompt) {
			fmt.Println("Aborted.")
			return nil
		}
	}

	deleted, err := store.DeletePerson(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("person %d not found", id)
	}
	fmt.Printf("Deleted %s (%d)\n", person.FullName(), id)
	return nil
}

func runUsersDuplicates(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	store, cfg, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	threshold := mustGetFloat64(cmd, "threshold")
	if threshold <= 0 {
		threshold = cfg.Recognition.Tolerance
	}

	gal := gallery.New(store)
	if err := gal.Reload(ctx); err != nil {
		return err
	}
	entries := gal.Entries()
	if len(entries) < 2 {
		fmt.Println("Not enough embeddings to compare.")
		return nil
	}

	// For each embedding, look at its nearest neighbors and report pairs
	// of different persons closer than the threshold.
	type pair struct{ a, b int64 }
	seen := make(map[pair]bool)
	found := 0
	for _, entry := range entries {
		for _, n := range gal.Nearest(entry.Embedding, 5) {
			if n.Entry.PersonID == entry.PersonID || n.Distance > threshold {
				continue
			}
			key := pair{entry.PersonID, n.Entry.PersonID}
			if key.a > key.b {
				key.a, key.b = key.b, key.a
			}
			if seen[key] {
				continue
			}
			seen[key] = true
			found++
			fmt.Printf("%s (%d) <-> %s (%d)  distance %.3f\n",
				entry.Name, entry.PersonID, n.Entry.Name, n.Entry.PersonID, n.Distance)
		}
	}

	if found == 0 {
		fmt.Printf("No pairs closer than %.2f found.\n", threshold)
	}
	return nil
}
