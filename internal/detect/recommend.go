package detect

import "chainaudit/pkg/models"

// ImmediateActionMessage leads the recommendation list whenever a
// critical finding is present.
const ImmediateActionMessage = "IMMEDIATE ACTION REQUIRED: critical vulnerabilities detected; pause affected instructions and patch before further use"

// NoFindingsMessage is emitted when a run produces no findings.
const NoFindingsMessage = "no vulnerabilities detected; continue regular security audits"

var remediationByCategory = map[string][]string{
	"arithmetic": {
		"use checked arithmetic (checked_add/checked_sub/checked_mul) on all balance math",
		"validate value ranges before state updates",
	},
	"reentrancy": {
		"complete all state updates before external program invocations",
		"add reentrancy guards on instructions that transfer value",
	},
	"access-control": {
		"verify signer and account ownership on every privileged instruction",
		"restrict admin instructions to a dedicated authority key",
	},
	"input-validation": {
		"validate all instruction arguments against explicit bounds",
		"reject unexpected account metas and oversized payloads",
	},
	"double-spend": {
		"track spent claims in program state before releasing funds",
		"make spend instructions idempotent per claim identifier",
	},
	"dos": {
		"bound per-transaction compute and account creation",
		"rate-limit expensive instructions per caller",
	},
	"combined": {
		"audit privileged flows end to end; combined exploits indicate layered control failures",
	},
	"systemic": {
		"adopt a baseline hardening pass: checked math, reentrancy guards, signer checks",
	},
}

// Recommend maps finding categories to remediation guidance. The result
// is deduplicated preserving first-occurrence order; the immediate-action
// message is prepended when any finding is critical.
func Recommend(findings []models.Finding) []string {
	if len(findings) == 0 {
		return []string{NoFindingsMessage}
	}

	out := make([]string, 0, 8)
	seen := make(map[string]struct{}, 8)
	add := func(msg string) {
		if _, ok := seen[msg]; ok {
			return
		}
		seen[msg] = struct{}{}
		out = append(out, msg)
	}

	for _, f := range findings {
		if f.Severity == models.SeverityCritical {
			add(ImmediateActionMessage)
			break
		}
	}

	for _, f := range findings {
		for _, msg := range remediationByCategory[f.Category] {
			add(msg)
		}
	}

	return out
}
