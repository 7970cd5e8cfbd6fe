package intent

import (
	"errors"
	"math/big"
	"strings"
	"testing"

	xerrors "IntentFlow-Chain/internal/errors"

	"github.com/ethereum/go-ethereum/common"
)

func TestFormatAmount(t *testing.T) {
	cases := []struct {
		name     string
		amount   *big.Int
		decimals uint8
		known    bool
		want     string
	}{
		{"native one and a half", big.NewInt(1_500_000_000_000_000_000), 18, true, "1.5"},
		{"token whole", big.NewInt(25_000_000), 6, true, "25"},
		{"token fraction", big.NewInt(25_500_000), 6, true, "25.5"},
		{"small fraction keeps leading zeros", big.NewInt(42), 6, true, "0.000042"},
		{"unknown decimals stays raw", big.NewInt(987654321), 0, false, "987654321"},
		{"zero", big.NewInt(0), 18, true, "0"},
		{"nil amount", nil, 18, true, "0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := FormatAmount(tc.amount, tc.decimals, tc.known); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestExplorerTxURLJoinsWithSingleSlash(t *testing.T) {
	hash := common.HexToHash("0xabc1")
	for _, base := range []string{"https://scan.test", "https://scan.test/"} {
		f := NewFormatter(base, "testchain")
		want := "https://scan.test/tx/" + hash.Hex()
		if got := f.ExplorerTxURL(hash); got != want {
			t.Fatalf("base %q: expected %q, got %q", base, want, got)
		}
	}

	if got := NewFormatter("", "").ExplorerTxURL(hash); got != "" {
		t.Fatalf("empty base should yield empty url, got %q", got)
	}
}

func TestFailureRendering(t *testing.T) {
	f := NewFormatter("https://scan.test", "testchain")

	plain := f.Failure(errors.New("boom"))
	if plain != "Error: boom" {
		t.Fatalf("unexpected rendering %q", plain)
	}

	wrapped := f.Failure(xerrors.Wrap(CodePreviewFailure, errors.New("execution reverted"), "预览调用失败"))
	if !strings.HasPrefix(wrapped, "Error: ") {
		t.Fatalf("missing prefix in %q", wrapped)
	}
	if !strings.Contains(wrapped, "execution reverted") {
		t.Fatalf("cause missing in %q", wrapped)
	}

	if f.Failure(nil) != "" {
		t.Fatal("nil error should render empty string")
	}
}

func TestSuccessReportFields(t *testing.T) {
	f := NewFormatter("https://scan.test/", "testchain")
	preview := &Preview{
		Action:        ActionTransfer,
		Amount:        big.NewInt(1_000_000),
		Token:         common.HexToAddress("0x00000000000000000000000000000000000000e2"),
		TokenDecimals: 6,
		DecimalsKnown: true,
	}
	txHash := common.HexToHash("0xdead")
	approval := common.HexToHash("0xbeef")

	report := f.Success("alice", "send 1 usdc", preview, Decision{Outcome: AllowanceApproved, ApprovalTx: approval}, txHash, nil)
	if report.Chain != "testchain" {
		t.Fatalf("unexpected chain %q", report.Chain)
	}
	if report.Amount != "1" {
		t.Fatalf("unexpected amount %q", report.Amount)
	}
	if report.ApprovalTx != approval.Hex() {
		t.Fatalf("unexpected approval tx %q", report.ApprovalTx)
	}
	if report.ExplorerURL != "https://scan.test/tx/"+txHash.Hex() {
		t.Fatalf("unexpected explorer url %q", report.ExplorerURL)
	}

	skipped := f.Success("alice", "send 1 eth", preview, Decision{Outcome: AllowanceSkipped}, txHash, nil)
	if skipped.ApprovalTx != "" {
		t.Fatalf("skipped allowance must not record approval tx, got %q", skipped.ApprovalTx)
	}
}
