package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/attendx/internal/database/postgres"
	"github.com/kozaktomas/attendx/internal/facematch"
)

var peopleCmd = &cobra.Command{
	Use:   "people [filter]",
	Short: "List registered people",
	Long: `List the people in the embeddings store with their number of vectors.
An optional filter matches names ignoring case and diacritics.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPeople,
}

func init() {
	rootCmd.AddCommand(peopleCmd)

	peopleCmd.Flags().Bool("json", false, "Output as JSON")
}

// PersonInfo is one row of the people listing.
type PersonInfo struct {
	Name    string `json:"name"`
	Vectors int    `json:"vectors"`
}

func runPeople(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	be, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer be.Close()

	store, err := be.repo.Load(ctx)
	if err != nil {
		return err
	}
	if be.pool != nil && !jsonOutput {
		n, err := postgres.NewPersonRepository(be.pool).Count(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("PostgreSQL holds %d people\n\n", n)
	}

	people := make([]PersonInfo, 0, store.Len())
	switch {
	case len(args) == 0:
		for _, p := range store.People {
			people = append(people, PersonInfo{Name: p.Name, Vectors: len(p.Vectors)})
		}
	default:
		// an exact name wins over the fuzzy filter
		if p, ok := store.Find(args[0]); ok {
			people = append(people, PersonInfo{Name: p.Name, Vectors: len(p.Vectors)})
			break
		}
		filter := facematch.NormalizePersonName(args[0])
		for _, p := range store.People {
			if strings.Contains(facematch.NormalizePersonName(p.Name), filter) {
				people = append(people, PersonInfo{Name: p.Name, Vectors: len(p.Vectors)})
			}
		}
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(people)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tVECTORS")
	fmt.Fprintln(w, "----\t-------")
	for _, p := range people {
		fmt.Fprintf(w, "%s\t%d\n", p.Name, p.Vectors)
	}
	w.Flush()

	fmt.Printf("\nTotal: %d people (model %s, %d dimensions, created %s)\n",
		len(people), store.Model, store.Dim, store.CreatedAt.Format("2006-01-02 15:04"))
	return nil
}
