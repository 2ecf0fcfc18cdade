// Package cmd contains the admin tooling commands.
package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/spf13/cobra"
)

var url string

func init() {
	rootCmd.PersistentFlags().StringVarP(&url, "url", "u", "http://localhost:8080", "Url of the ledger service.")
}

var rootCmd = &cobra.Command{
	Use:   "admin",
	Short: "Admin tooling for the ledger service",
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// get performs a GET against the service and prints the JSON response.
func get(path string) error {
	resp, err := http.Get(url + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return print(resp)
}

// post sends the value as JSON to the service and prints the response.
func post(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	resp, err := http.Post(url+path, "application/json", bytes.NewBuffer(data))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return print(resp)
}

// send performs a request with the specified method against the service.
func send(method string, path string, v any) error {
	var body io.Reader
	if v != nil {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		body = bytes.NewBuffer(data)
	}

	req, err := http.NewRequest(method, url+path, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return print(resp)
}

// print renders the response body, re-indenting JSON when possible.
func print(resp *http.Response) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var out bytes.Buffer
	if json.Indent(&out, data, "", "  ") == nil {
		fmt.Println(out.String())
		return nil
	}

	fmt.Println(string(data))
	return nil
}
