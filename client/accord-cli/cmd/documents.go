package cmd

import (
	"bytes"
	"fmt"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var searchTopK int

var uploadCmd = &cobra.Command{
	Use:   "upload [file-path]",
	Short: "Upload a document into the compliance repository",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		upload(args[0])
	},
}

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search documents by similarity without generating an answer",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		search(args[0])
	},
}

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "List stored documents",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		listDocs()
	},
}

func init() {
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().IntVar(&searchTopK, "top-k", 0, "number of results (0 uses the server default)")
	rootCmd.AddCommand(docsCmd)
}

func upload(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("Error reading %s: %v", path, err)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		log.Fatalf("Error building request: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		log.Fatalf("Error building request: %v", err)
	}
	w.Close()

	token, err := loadToken()
	if err != nil {
		log.Fatalf("%v", err)
	}

	req, err := http.NewRequest(http.MethodPost, serverURL+"/api/v1/documents", &buf)
	if err != nil {
		log.Fatalf("Error building request: %v", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("Error uploading document: %v", err)
	}
	defer resp.Body.Close()

	var result struct {
		Duplicate bool   `json:"duplicate"`
		Message   string `json:"message"`
		Document  struct {
			ID        string `json:"id"`
			Filename  string `json:"filename"`
			MimeType  string `json:"mime_type"`
			Sensitive bool   `json:"sensitive_flag"`
		} `json:"document"`
	}
	if err := decodeResponse(resp, &result); err != nil {
		log.Fatalf("Upload failed: %v", err)
	}

	if result.Duplicate {
		fmt.Println("Already ingested, nothing to do.")
		return
	}
	fmt.Printf("Uploaded %s as %s (%s)\n", result.Document.Filename, result.Document.ID, result.Document.MimeType)
	if result.Document.Sensitive {
		fmt.Println("Note: the document contained PII and was stored redacted.")
	}
}

func search(query string) {
	payload := map[string]interface{}{"query": query}
	if searchTopK > 0 {
		payload["top_k"] = searchTopK
	}

	var result struct {
		Results []struct {
			DocID           string  `json:"doc_id"`
			Filename        string  `json:"filename"`
			SimilarityScore float64 `json:"similarity_score"`
			Excerpt         string  `json:"excerpt"`
		} `json:"results"`
		Count int `json:"count"`
	}
	if err := doJSON(http.MethodPost, "/api/v1/search", payload, true, &result); err != nil {
		log.Fatalf("Error searching: %v", err)
	}

	for _, r := range result.Results {
		fmt.Printf("[%.2f] %s (%s)\n", r.SimilarityScore, r.Filename, r.DocID)
		if r.Excerpt != "" {
			fmt.Printf("       %s\n", r.Excerpt)
		}
	}
	fmt.Printf("\n%d results\n", result.Count)
}

func listDocs() {
	var result struct {
		Documents []struct {
			ID        string `json:"id"`
			Filename  string `json:"filename"`
			MimeType  string `json:"mime_type"`
			CreatedAt string `json:"created_at"`
		} `json:"documents"`
		Total int64 `json:"total"`
	}
	if err := doJSON(http.MethodGet, "/api/v1/documents", nil, true, &result); err != nil {
		log.Fatalf("Error listing documents: %v", err)
	}

	for _, d := range result.Documents {
		fmt.Printf("%s  %-30s %s\n", d.ID, d.Filename, d.MimeType)
	}
	fmt.Printf("\n%d documents total\n", result.Total)
}
