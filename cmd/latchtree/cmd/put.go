package cmd

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

var putIndex string

// putCmd puts a key-value pair into a running server's named index.
var putCmd = &cobra.Command{
	Use:   "put <key> <value>",
	Short: "Put a key-value pair into a running server's index",
	Long: `Put a key-value pair against a running latchtree server.

Example:
  latchtree put mykey 42 --addr http://127.0.0.1:8080 --index default`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var value uint64
		if _, err := fmt.Sscanf(args[1], "%d", &value); err != nil {
			return fmt.Errorf("value must be an unsigned integer: %w", err)
		}

		body, err := json.Marshal(map[string]any{
			"key":   base64.StdEncoding.EncodeToString([]byte(args[0])),
			"value": value,
		})
		if err != nil {
			return err
		}

		url := fmt.Sprintf("%s/v1/indexes/%s/keys", serverAddr, putIndex)
		resp, err := http.Post(url, "application/json", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("server returned %s", resp.Status)
		}
		fmt.Printf("put %q = %d into index %q\n", args[0], value, putIndex)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(putCmd)
	putCmd.Flags().StringVar(&putIndex, "index", "default", "name of the index to write to")
}
