package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"pet-food-safety/internal/client"
	"pet-food-safety/internal/core/normalize"
	"pet-food-safety/internal/core/ratelimit"
	"pet-food-safety/internal/core/safety"
)

var (
	checkPet  string
	checkLang string
)

var checkCmd = &cobra.Command{
	Use:   "check <food...>",
	Short: "Check whether a food is safe for a pet",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&checkPet, "pet", "", "pet type: dog or cat (default: last used, then dog)")
	checkCmd.Flags().StringVar(&checkLang, "lang", normalize.DefaultLanguage, "answer language")
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	c, err := openCache(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	pet := safety.PetType(strings.ToLower(checkPet))
	if pet == "" {
		pet = c.Preferences().PetType
	}
	if pet == "" {
		pet = safety.PetDog
	}

	limiter := ratelimit.NewLimiter(ratelimit.DefaultRules())
	defer limiter.Close()

	session := client.NewSession(client.NewAPIClient(cfg.Client.BaseURL, cfg.Client.Timeout), c, limiter)
	defer session.Close()

	res, err := session.Search(ctx, safety.Query{
		Food:     strings.Join(args, " "),
		PetType:  pet,
		Language: checkLang,
	})
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"verdict": res.Verdict,
			"cached":  res.Cached,
			"verb":    normalize.ConsumeVerb(res.Verdict.Food, checkLang),
		})
	}
	printVerdict(cmd.OutOrStdout(), res, checkLang)
	return nil
}

// printVerdict 以文字輸出判定結果
func printVerdict(w io.Writer, res client.Result, lang string) {
	v := res.Verdict
	if normalize.NormalizeLanguage(lang) == normalize.DefaultLanguage {
		fmt.Fprintf(w, "Can %ss %s %s?\n", v.PetType, normalize.ConsumeVerb(v.Food, lang), v.Food)
	} else {
		fmt.Fprintf(w, "%s (%s)\n", v.Food, v.PetType)
	}

	source := string(v.SourceKind)
	if res.Cached {
		source += ", cached"
	}
	fmt.Fprintf(w, "Safety: %s (%s)\n\n", strings.ToUpper(string(v.SafetyLevel)), source)
	fmt.Fprintln(w, v.Summary)
	if v.Details != "" && v.Details != v.Summary {
		fmt.Fprintf(w, "\n%s\n", v.Details)
	}

	printList(w, "Symptoms to watch for", v.Symptoms)
	printList(w, "Recommendations", v.Recommendations)
}

func printList(w io.Writer, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s:\n", title)
	for _, item := range items {
		fmt.Fprintf(w, "  - %s\n", item)
	}
}
