package controller

import (
	"io"
	"log/slog"
	"testing"

	"github.com/unicornultrafoundation/meshbridge/internal/protocol"
)

func testDB(t *testing.T) *Controller {
	t.Helper()
	db, err := InitDB("sqlite://:memory:")
	if err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	return &Controller{db: db, log: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func TestBuildCloudConfigListsOnlyAuthorizedMembers(t *testing.T) {
	ctrl := testDB(t)
	cloud := Cloud{Name: "office", MTU: 1500, Token: "deadbeefcafebabe"}
	if err := ctrl.db.Create(&cloud).Error; err != nil {
		t.Fatalf("create cloud: %v", err)
	}

	authorized := Member{CloudID: cloud.ID, NodeAddress: "aaaaaaaaaa", Authorized: true}
	pending := Member{CloudID: cloud.ID, NodeAddress: "bbbbbbbbbb", Authorized: false}
	if err := ctrl.db.Create(&authorized).Error; err != nil {
		t.Fatalf("create authorized member: %v", err)
	}
	if err := ctrl.db.Create(&pending).Error; err != nil {
		t.Fatalf("create pending member: %v", err)
	}

	h := NewWSHandler(ctrl, ctrl.log)
	cfg := h.buildCloudConfig(cloud)

	if cfg.CloudID != "1" || cfg.Name != "office" || cfg.MTU != 1500 || cfg.Token != cloud.Token {
		t.Fatalf("unexpected cloud config: %+v", cfg)
	}
	if len(cfg.Peers) != 1 || cfg.Peers[0].Address != authorized.NodeAddress {
		t.Fatalf("expected only the authorized member in peer list, got %+v", cfg.Peers)
	}
}

func TestBuildCloudConfigIncludesEndpointsForOnlineNodes(t *testing.T) {
	ctrl := testDB(t)
	cloud := Cloud{Name: "office", Token: "deadbeefcafebabe"}
	ctrl.db.Create(&cloud)
	member := Member{CloudID: cloud.ID, NodeAddress: "aaaaaaaaaa", Authorized: true}
	ctrl.db.Create(&member)

	h := NewWSHandler(ctrl, ctrl.log)
	h.nodes[member.NodeAddress] = &NodeConn{
		NodeAddr:  member.NodeAddress,
		Endpoints: []string{"203.0.113.9:9993"},
	}

	cfg := h.buildCloudConfig(cloud)
	if len(cfg.Peers) != 1 || len(cfg.Peers[0].Endpoints) != 1 || cfg.Peers[0].Endpoints[0] != "203.0.113.9:9993" {
		t.Fatalf("expected online node's endpoints to be included, got %+v", cfg.Peers)
	}
}

func TestGetOnlineNodesReflectsTrackedConnections(t *testing.T) {
	ctrl := testDB(t)
	h := NewWSHandler(ctrl, ctrl.log)
	h.nodes["aaaaaaaaaa"] = &NodeConn{NodeAddr: "aaaaaaaaaa"}
	h.nodes["bbbbbbbbbb"] = &NodeConn{NodeAddr: "bbbbbbbbbb"}

	online := h.GetOnlineNodes()
	if len(online) != 2 || !online["aaaaaaaaaa"] || !online["bbbbbbbbbb"] {
		t.Fatalf("unexpected online set: %v", online)
	}
}

func TestHandleLeaveRemovesClouds(t *testing.T) {
	ctrl := testDB(t)
	h := NewWSHandler(ctrl, ctrl.log)
	node := &NodeConn{NodeAddr: "aaaaaaaaaa", Clouds: []string{"1", "2", "3"}}

	h.handleLeave(node, &protocol.LeaveMessage{Clouds: []string{"2"}})

	want := []string{"1", "3"}
	if len(node.Clouds) != len(want) {
		t.Fatalf("Clouds = %v, want %v", node.Clouds, want)
	}
	for i := range want {
		if node.Clouds[i] != want[i] {
			t.Fatalf("Clouds = %v, want %v", node.Clouds, want)
		}
	}
}
