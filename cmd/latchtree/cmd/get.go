package cmd

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

var getIndex string

// getCmd reads a key from a running server's named index.
var getCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a value from a running server's index",
	Long: `Get a value for a key from a running latchtree server.

Example:
  latchtree get mykey --addr http://127.0.0.1:8080 --index default`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		keyB64 := base64.StdEncoding.EncodeToString([]byte(args[0]))
		url := fmt.Sprintf("%s/v1/indexes/%s/keys/%s", serverAddr, getIndex, keyB64)

		resp, err := http.Get(url)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			fmt.Println("key not found")
			return nil
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("server returned %s", resp.Status)
		}

		var decoded struct {
			Success bool `json:"success"`
			Data    struct {
				Value uint64 `json:"value"`
			} `json:"data"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		fmt.Printf("%d\n", decoded.Data.Value)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(getCmd)
	getCmd.Flags().StringVar(&getIndex, "index", "default", "name of the index to read from")
}
