package domain

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		in   string
		want Kind
	}{
		{"fungible", KindFungible},
		{"20", KindFungible},
		{"non_fungible", KindNonFungible},
		{"721", KindNonFungible},
		{"semi_fungible", KindSemiFungible},
		{"1155", KindSemiFungible},
	}
	for _, tt := range tests {
		got, err := ParseKind(tt.in)
		if err != nil {
			t.Errorf("ParseKind(%q) returned error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseKind(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if _, err := ParseKind("erc777"); !errors.Is(err, ErrInvalidKind) {
		t.Errorf("expected ErrInvalidKind, got %v", err)
	}
	if Kind(0).Valid() {
		t.Error("zero kind reported valid")
	}
}

func TestParsePaymentAsset(t *testing.T) {
	for _, in := range []string{"", "native"} {
		p, err := ParsePaymentAsset(in)
		if err != nil {
			t.Fatalf("ParsePaymentAsset(%q) returned error: %v", in, err)
		}
		if !p.Native() {
			t.Fatalf("ParsePaymentAsset(%q) not native", in)
		}
	}

	addr := "0x00000000000000000000000000000000000000bb"
	p, err := ParsePaymentAsset(addr)
	if err != nil {
		t.Fatalf("ParsePaymentAsset(%q) returned error: %v", addr, err)
	}
	if p.Native() || p.Token != common.HexToAddress(addr) {
		t.Fatalf("ParsePaymentAsset(%q) = %v", addr, p)
	}
	if p.String() != common.HexToAddress(addr).Hex() {
		t.Fatalf("String() = %s", p.String())
	}

	if _, err := ParsePaymentAsset("not-an-address"); err == nil {
		t.Fatal("ParsePaymentAsset accepted garbage")
	}
}

func TestEventChannelRouting(t *testing.T) {
	tests := []struct {
		evType EventType
		want   string
	}{
		{EventContractCreated, ChannelContract},
		{EventOrderListed, ChannelOrder},
		{EventOrderFunded, ChannelOrder},
		{EventOrderSettled, ChannelOrder},
		{EventAuctionStarted, ChannelAuction},
		{EventBidPlaced, ChannelAuction},
		{EventAuctionSettled, ChannelAuction},
		{EventVaultDeposit, ChannelVault},
		{EventVaultWithdraw, ChannelVault},
	}
	for _, tt := range tests {
		if got := (Event{Type: tt.evType}).Channel(); got != tt.want {
			t.Errorf("Channel(%s) = %s, want %s", tt.evType, got, tt.want)
		}
	}
}
