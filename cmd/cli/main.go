package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	baseURL string
	timeout time.Duration
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "txnzero-cli",
		Short: "txnzero CLI tool",
		Long:  `A command line interface for interacting with the txnzero payment API.`,
	}

	rootCmd.PersistentFlags().StringVar(&baseURL, "url", "http://localhost:8080", "Base URL of the txnzero API")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "Request timeout")

	rootCmd.AddCommand(accountCmd(), transferCmd(), balanceCmd(), statementCmd(), txnCmd(), reconcileCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func accountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Account operations",
	}

	var holder, opening string
	var overdraft bool
	createCmd := &cobra.Command{
		Use:   "create <id>",
		Short: "Create an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return postJSON("/api/v1/accounts/", map[string]any{
				"id":              args[0],
				"holder":          holder,
				"opening_balance": opening,
				"allow_overdraft": overdraft,
			}, "")
		},
	}
	createCmd.Flags().StringVar(&holder, "holder", "", "Account holder name")
	createCmd.Flags().StringVar(&opening, "opening", "0", "Opening balance")
	createCmd.Flags().BoolVar(&overdraft, "overdraft", false, "Allow negative balance")

	getCmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Fetch an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return getJSON("/api/v1/accounts/" + url.PathEscape(args[0]))
		},
	}

	var frozen bool
	freezeCmd := &cobra.Command{
		Use:   "freeze <id>",
		Short: "Freeze or unfreeze an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return putJSON("/api/v1/accounts/"+url.PathEscape(args[0])+"/freeze", map[string]any{
				"frozen": frozen,
			})
		},
	}
	freezeCmd.Flags().BoolVar(&frozen, "frozen", true, "Target frozen state")

	cmd.AddCommand(createCmd, getCmd, freezeCmd)
	return cmd
}

func transferCmd() *cobra.Command {
	var txnID, verdict, riskScore, idemKey string
	cmd := &cobra.Command{
		Use:   "transfer <payer> <payee> <amount>",
		Short: "Execute a transfer",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]any{
				"payer_id": args[0],
				"payee_id": args[1],
				"amount":   args[2],
			}
			if txnID != "" {
				body["txn_id"] = txnID
			}
			if verdict != "" {
				body["verdict"] = verdict
			}
			if riskScore != "" {
				body["risk_score"] = riskScore
			}
			return postJSON("/api/v1/transfers/", body, idemKey)
		},
	}
	cmd.Flags().StringVar(&txnID, "txn-id", "", "Global transaction ID (enables replay protection)")
	cmd.Flags().StringVar(&verdict, "verdict", "", "Fraud verdict: allow, challenge, block")
	cmd.Flags().StringVar(&riskScore, "risk-score", "", "Fraud risk score")
	cmd.Flags().StringVar(&idemKey, "idempotency-key", "", "Idempotency-Key header value")
	return cmd
}

func balanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance <account-id>",
		Short: "Fetch an account balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return getJSON("/api/v1/accounts/" + url.PathEscape(args[0]) + "/balance")
		},
	}
}

func statementCmd() *cobra.Command {
	var limit int
	var pageToken string
	cmd := &cobra.Command{
		Use:   "statement <account-id>",
		Short: "Fetch ledger history for an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if limit > 0 {
				q.Set("limit", fmt.Sprint(limit))
			}
			if pageToken != "" {
				q.Set("page_token", pageToken)
			}
			path := "/api/v1/accounts/" + url.PathEscape(args[0]) + "/statement"
			if len(q) > 0 {
				path += "?" + q.Encode()
			}
			return getJSON(path)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Page size")
	cmd.Flags().StringVar(&pageToken, "page-token", "", "Resume token from the previous page")
	return cmd
}

func txnCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "txn <txn-id>",
		Short: "Fetch a transaction record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return getJSON("/api/v1/transactions/" + url.PathEscape(args[0]))
		},
	}
}

func reconcileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Reconciliation operations",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run one reconciliation sweep",
		RunE: func(cmd *cobra.Command, args []string) error {
			return postJSON("/api/v1/reconcile/", nil, "")
		},
	}

	verifyCmd := &cobra.Command{
		Use:   "verify",
		Short: "Audit account balances against the journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return getJSON("/api/v1/reconcile/balances")
		},
	}

	cmd.AddCommand(runCmd, verifyCmd)
	return cmd
}

func getJSON(path string) error {
	client := &http.Client{Timeout: timeout}
	resp, err := client.Get(baseURL + path)
	if err != nil {
		return err
	}
	return printResponse(resp)
}

func postJSON(path string, body any, idemKey string) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if idemKey != "" {
		req.Header.Set("Idempotency-Key", idemKey)
	}

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	return printResponse(resp)
}

func putJSON(path string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPut, baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	return printResponse(resp)
}

func printResponse(resp *http.Response) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var pretty any
	if err := json.Unmarshal(body, &pretty); err != nil {
		fmt.Println(string(body))
	} else {
		printJSON(pretty)
	}

	if resp.StatusCode >= 400 {
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	return nil
}

func printJSON(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Println(v)
		return
	}
	fmt.Println(string(out))
}
