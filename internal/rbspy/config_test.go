package rbspy

import "testing"

func TestConfigLockProcessDefaultsTrue(t *testing.T) {
	c := Config{}
	if !c.lockProcess() {
		t.Error("lockProcess() should default to true when LockProcess is unset")
	}
}

func TestConfigLockProcessExplicit(t *testing.T) {
	yes, no := true, false
	if !(Config{LockProcess: &yes}).lockProcess() {
		t.Error("lockProcess() should honor an explicit true")
	}
	if (Config{LockProcess: &no}).lockProcess() {
		t.Error("lockProcess() should honor an explicit false")
	}
}

func TestConfigSampleRateDefault(t *testing.T) {
	if got := (Config{}).sampleRate(); got != 100 {
		t.Errorf("sampleRate() = %d, want 100", got)
	}
	if got := (Config{SampleRate: 50}).sampleRate(); got != 50 {
		t.Errorf("sampleRate() = %d, want 50", got)
	}
}
