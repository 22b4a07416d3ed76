package cmd

import (
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/spf13/cobra"
)

var (
	askTopK      int
	askThreshold float64
	noSources    bool
	historyLimit int
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a compliance question",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ask(args[0])
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show your past questions and answers",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		history()
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().IntVar(&askTopK, "top-k", 0, "number of documents to retrieve (0 uses the server default)")
	askCmd.Flags().Float64Var(&askThreshold, "threshold", -1, "minimum similarity for a source to count (server default when negative)")
	askCmd.Flags().BoolVar(&noSources, "no-sources", false, "omit citations from the answer")

	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "number of entries to fetch")
}

func ask(question string) {
	payload := map[string]interface{}{"query": question}
	if askTopK > 0 {
		payload["top_k"] = askTopK
	}
	if askThreshold >= 0 {
		payload["similarity_threshold"] = askThreshold
	}
	if noSources {
		payload["include_sources"] = false
	}

	var result struct {
		Answer     string  `json:"answer"`
		Confidence float64 `json:"confidence"`
		Citations  []struct {
			DocID           string  `json:"doc_id"`
			Filename        string  `json:"filename"`
			SimilarityScore float64 `json:"similarity_score"`
		} `json:"citations"`
		ModelUsed        string `json:"model_used"`
		ProcessingTimeMS int64  `json:"processing_time_ms"`
	}
	if err := doJSON(http.MethodPost, "/api/v1/qa/ask", payload, true, &result); err != nil {
		log.Fatalf("Error asking question: %v", err)
	}

	fmt.Println(result.Answer)
	fmt.Printf("\nconfidence %.2f, model %s, %dms\n", result.Confidence, result.ModelUsed, result.ProcessingTimeMS)
	for _, c := range result.Citations {
		fmt.Printf("  [%.2f] %s (%s)\n", c.SimilarityScore, c.Filename, c.DocID)
	}
}

func history() {
	var result struct {
		History []struct {
			Timestamp  string  `json:"timestamp"`
			Query      string  `json:"query"`
			Confidence float64 `json:"confidence"`
		} `json:"history"`
		Count int `json:"count"`
	}
	path := "/api/v1/qa/history?limit=" + strconv.Itoa(historyLimit)
	if err := doJSON(http.MethodGet, path, nil, true, &result); err != nil {
		log.Fatalf("Error fetching history: %v", err)
	}

	for _, e := range result.History {
		fmt.Printf("%s  %.2f  %s\n", e.Timestamp, e.Confidence, e.Query)
	}
	fmt.Printf("\n%d entries\n", result.Count)
}
