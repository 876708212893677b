package core

import (
	"reflect"
	"testing"
)

func TestPolicyEmptyAllowsEverything(t *testing.T) {
	p := NewPolicy("")
	if err := p.CheckTool("plan"); err != nil {
		t.Fatalf("empty allowlist should allow plan: %v", err)
	}
	var nilPolicy *Policy
	if err := nilPolicy.CheckTool("plan"); err != nil {
		t.Fatalf("nil policy should allow plan: %v", err)
	}
}

func TestPolicyCheckTool(t *testing.T) {
	p := NewPolicy(" plan , jira_velocity,,")
	if err := p.CheckTool("plan"); err != nil {
		t.Fatalf("plan should be allowed: %v", err)
	}
	if err := p.CheckTool("plan_with_jira"); err == nil {
		t.Fatal("plan_with_jira should be rejected")
	}
}

func TestPolicyUnknown(t *testing.T) {
	p := NewPolicy("plan,typo_tool,another")
	got := p.Unknown([]string{"plan", "plan_with_jira"})
	want := []string{"another", "typo_tool"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Unknown() = %v, want %v", got, want)
	}
}
