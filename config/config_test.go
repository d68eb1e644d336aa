package config

import "testing"

func TestFromEnv_MissingPort(t *testing.T) {
	t.Setenv(envSyncPort, "")
	if _, err := FromEnv(); err == nil {
		t.Fatal("expected error when P2P_SYNC_PORT is unset")
	}
}

func TestFromEnv_BadPort(t *testing.T) {
	t.Setenv(envSyncPort, "not-a-number")
	if _, err := FromEnv(); err == nil {
		t.Fatal("expected error for non-numeric port")
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv(envSyncPort, "9443")
	t.Setenv(envMyAddress, "")
	t.Setenv(envPeers, "")
	t.Setenv(envPreferredModules, "")
	t.Setenv(envLogLevel, "")
	t.Setenv(envLogFile, "")
	t.Setenv(envLogJSON, "")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.SyncPort != 9443 {
		t.Errorf("SyncPort = %d, want 9443", cfg.SyncPort)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}
	if len(cfg.Peers) != 0 {
		t.Errorf("expected no peers, got %v", cfg.Peers)
	}
}

func TestFromEnv_PeersParsed(t *testing.T) {
	t.Setenv(envSyncPort, "9443")
	t.Setenv(envPeers, "10.0.0.1:4000, 10.0.0.2:4000,,[::1]:4000")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	want := []string{"10.0.0.1:4000", "10.0.0.2:4000", "[::1]:4000"}
	if len(cfg.Peers) != len(want) {
		t.Fatalf("Peers = %v, want %v", cfg.Peers, want)
	}
	for i := range want {
		if cfg.Peers[i] != want[i] {
			t.Errorf("Peers[%d] = %q, want %q", i, cfg.Peers[i], want[i])
		}
	}
}

func TestFromEnv_RejectsBadPeerAddress(t *testing.T) {
	t.Setenv(envSyncPort, "9443")
	t.Setenv(envPeers, "not-a-host-port")

	if _, err := FromEnv(); err == nil {
		t.Fatal("expected validation error for malformed peer address")
	}
}

func TestFromEnv_RejectsHostnamePeer(t *testing.T) {
	t.Setenv(envSyncPort, "9443")
	t.Setenv(envPeers, "example.com:4000")

	if _, err := FromEnv(); err == nil {
		t.Fatal("expected validation error for non-IP peer host")
	}
}

func TestFromEnv_InstanceName(t *testing.T) {
	t.Setenv(envSyncPort, "9443")
	t.Setenv(envInstanceName, "bravo")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.InstanceName != "bravo" {
		t.Errorf("InstanceName = %q, want bravo", cfg.InstanceName)
	}
}

func TestFromEnv_InstanceNameDefaultsEmpty(t *testing.T) {
	t.Setenv(envSyncPort, "9443")
	t.Setenv(envInstanceName, "")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.InstanceName != "" {
		t.Errorf("InstanceName = %q, want empty so Handler generates one", cfg.InstanceName)
	}
}

func TestFromEnv_PreferredModules(t *testing.T) {
	t.Setenv(envSyncPort, "9443")
	t.Setenv(envPreferredModules, "metrics, greet")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if len(cfg.PreferredModules) != 2 || cfg.PreferredModules[0] != "metrics" || cfg.PreferredModules[1] != "greet" {
		t.Errorf("PreferredModules = %v", cfg.PreferredModules)
	}
}

func TestValidate_BadLogLevel(t *testing.T) {
	cfg := Default()
	cfg.SyncPort = 1234
	cfg.Log.Level = "verbose"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for invalid log level")
	}
}

func TestValidate_PortOutOfRange(t *testing.T) {
	cfg := Default()
	cfg.SyncPort = 70000
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for out-of-range port")
	}
}
