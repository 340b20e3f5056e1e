package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/rushteam/recpipe/config"
	"github.com/rushteam/recpipe/core"
	"github.com/rushteam/recpipe/recall"
	"github.com/rushteam/recpipe/rerank"
)

func TestFirstNonEmpty(t *testing.T) {
	tests := []struct {
		in   []string
		want string
	}{
		{[]string{"", "info"}, "info"},
		{[]string{"debug", "info"}, "debug"},
		{[]string{"", ""}, ""},
		{nil, ""},
	}
	for _, tt := range tests {
		if got := firstNonEmpty(tt.in...); got != tt.want {
			t.Errorf("firstNonEmpty(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestOpenSyncer_Backend(t *testing.T) {
	c := &config.Config{}
	tests := []struct {
		backend string
		wantErr string
	}{
		{"", "no remote backend configured"},
		{"ftp", "unknown remote backend"},
		{"s3", "bucket name is required"},
		{"gcs", "bucket name is required"},
	}
	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			_, _, err := openSyncer(context.Background(), c, tt.backend)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("openSyncer(%q) error = %v, want %q", tt.backend, err, tt.wantErr)
			}
		})
	}
}

func TestCommandsRegistered(t *testing.T) {
	want := map[string]bool{"train": false, "recommend": false, "sync": false, "runs": false}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("command %s not registered", name)
		}
	}
}

func TestRecommend_StoreModelNeedsRedis(t *testing.T) {
	prevCfg, prevModel := cfg, recModel
	t.Cleanup(func() { cfg, recModel = prevCfg, prevModel })

	cfg = &config.Config{}
	recModel = "cf-store"
	err := recommendCmd.RunE(recommendCmd, nil)
	if !core.IsConfigurationError(err) {
		t.Errorf("cf-store without redis.addr: %v", err)
	}
}

func TestPrintRecommendations(t *testing.T) {
	res := &recall.Result{UserID: "u1", Items: []rerank.Scored{{ID: "p2", Score: 4.5}, {ID: "p1", Score: 3.25}}}
	tests := []struct {
		name string
		json bool
		want []string
	}{
		{"table", false, []string{"RANK", "1", "p2", "4.5000", "p1", "3.2500"}},
		{"json", true, []string{`"UserID": "u1"`, `"id": "p2"`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prev := recAsJSON
			t.Cleanup(func() { recAsJSON = prev })
			recAsJSON = tt.json

			var buf bytes.Buffer
			cmd := &cobra.Command{}
			cmd.SetOut(&buf)
			if err := printRecommendations(cmd, res); err != nil {
				t.Fatal(err)
			}
			for _, w := range tt.want {
				if !strings.Contains(buf.String(), w) {
					t.Errorf("output %q missing %q", buf.String(), w)
				}
			}
		})
	}
}
