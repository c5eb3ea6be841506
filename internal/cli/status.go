package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harun/drawerq/internal/daemon"
	"github.com/harun/drawerq/pkg/drawer"
	"github.com/harun/drawerq/pkg/gateway"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	Long:  `Show whether a drawerq daemon is serving and what its queue looks like.`,
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	info, err := daemon.ReadRuntimeInfo(cfg.DataDir)
	if errors.Is(err, daemon.ErrNotRunning) {
		fmt.Fprintln(out, "Status: stopped")
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Status: running\n")
	fmt.Fprintf(out, "PID: %d\n", info.PID)
	fmt.Fprintf(out, "Address: %s\n", info.Addr)
	if !info.StartedAt.IsZero() {
		fmt.Fprintf(out, "Uptime: %s\n", formatDuration(time.Since(info.StartedAt)))
	}

	snap, err := fetchSnapshot(cmd.Context(), info.Addr, cfg.Gateway.SharedSecret)
	if err != nil {
		fmt.Fprintf(out, "Queue: unavailable (%v)\n", err)
		return nil
	}
	printSnapshot(cmd, snap)
	return nil
}

func printSnapshot(cmd *cobra.Command, snap *drawer.Snapshot) {
	out := cmd.OutOrStdout()

	current := snap.CurrentID()
	if current == "" {
		current = "none"
	}
	pending := "none"
	if ids := snap.PendingIDs(); len(ids) > 0 {
		pending = strings.Join(ids, ", ")
	}

	fmt.Fprintf(out, "Queue: %s\n", snap.State)
	fmt.Fprintf(out, "Current: %s\n", current)
	fmt.Fprintf(out, "Pending: %s\n", pending)
	if snap.Locked {
		fmt.Fprintf(out, "Locked: yes (%d deferred)\n", snap.Deferred)
	} else {
		fmt.Fprintf(out, "Locked: no\n")
	}
}

// fetchSnapshot calls drawer.snapshot on the daemon's HTTP RPC endpoint.
func fetchSnapshot(ctx context.Context, addr, secret string) (*drawer.Snapshot, error) {
	body, err := json.Marshal(gateway.RPCRequest{
		ID:      uuid.NewString(),
		Method:  "drawer.snapshot",
		JSONRPC: "2.0",
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "http://"+addr+"/rpc", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set(gateway.SecretHeader, secret)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway returned %s", resp.Status)
	}

	var rpcResp struct {
		Result *drawer.Snapshot  `json:"result"`
		Error  *gateway.RPCError `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if rpcResp.Error != nil {
		return nil, rpcResp.Error
	}
	if rpcResp.Result == nil {
		return nil, fmt.Errorf("empty snapshot")
	}
	return rpcResp.Result, nil
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
