package backends

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ValentinKolb/recstore/lib/common"
	"github.com/ValentinKolb/recstore/lib/records"
)

func TestOpenLocalBackends(t *testing.T) {
	confs := map[string]common.ClientConfig{
		"memory": {Backend: common.BackendMemory},
		"bolt": {
			Backend: common.BackendBolt,
			Bolt:    common.BoltConf{Path: filepath.Join(t.TempDir(), "r.db"), LockTimeoutSec: 1},
		},
	}
	for name, conf := range confs {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			c, err := Open(ctx, conf)
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			defer c.Close()

			ref := records.Ref{Client: c, Kind: "Book"}
			rec, err := records.Update(ctx, ref, "", records.Record{"title": "Dune"})
			if err != nil {
				t.Fatalf("Update failed: %v", err)
			}
			if _, ok := rec["id"].(int64); !ok {
				t.Errorf("expected int64 id, got %#v", rec["id"])
			}
		})
	}
}

func TestOpenRejectsIncompleteConfig(t *testing.T) {
	for name, conf := range map[string]common.ClientConfig{
		"unknown":      {Backend: "redis"},
		"bolt no path": {Backend: common.BackendBolt},
		"no project":   {Backend: common.BackendDatastore},
		"no table":     {Backend: common.BackendDynamoDB},
		"no endpoints": {Backend: common.BackendRemote},
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := Open(context.Background(), conf); err == nil {
				t.Error("expected error")
			}
		})
	}
}
