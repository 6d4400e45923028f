package identity

import (
	"testing"

	"ktm_scrooper/models"
)

func TestNormalizeTitle(t *testing.T) {
	cases := map[string]string{
		"모두다 맘껏 11GB+":       "모두다 맘껏 11gb+",
		"  [특가] 데이터  ON  ":   "특가 데이터 on",
		"5G Slim (9GB)":       "5g slim 9gb",
	}
	for in, want := range cases {
		if got := NormalizeTitle(in); got != want {
			t.Fatalf("NormalizeTitle(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNetwork(t *testing.T) {
	if got := Network("LTE 요금제"); got != "lte" {
		t.Fatalf("expected lte, got %s", got)
	}
	if got := Network("5G 요금제"); got != "5g" {
		t.Fatalf("expected 5g, got %s", got)
	}
	if got := Network("기타"); got != "" {
		t.Fatalf("expected empty network, got %s", got)
	}
}

func TestFingerprint_StableAcrossPriceAndPosition(t *testing.T) {
	a := &models.RawPlan{
		Site:       "ktmmobile",
		TabName:    "유심/eSIM 요금제",
		SubtabName: "LTE 요금제",
		ModalTitle: "모두다 맘껏 11GB+",
		Price:      19800,
		CardIndex:  3,
	}
	b := &models.RawPlan{
		Site:       "ktmmobile",
		TabName:    "유심/eSIM 요금제",
		SubtabName: "LTE 요금제",
		ModalTitle: "모두다  맘껏 11GB+",
		Price:      17800,
		CardIndex:  9,
	}
	if Fingerprint(a) != Fingerprint(b) {
		t.Fatal("fingerprint should ignore price, position, and extra whitespace")
	}
}

func TestFingerprint_DistinguishesNetwork(t *testing.T) {
	a := &models.RawPlan{Site: "ktmmobile", TabName: "유심/eSIM 요금제", SubtabName: "LTE 요금제", ModalTitle: "슬림"}
	b := &models.RawPlan{Site: "ktmmobile", TabName: "유심/eSIM 요금제", SubtabName: "5G 요금제", ModalTitle: "슬림"}
	if Fingerprint(a) == Fingerprint(b) {
		t.Fatal("plans on different networks must not collide")
	}
}

func TestFingerprint_FallsBackToListTitle(t *testing.T) {
	p := &models.RawPlan{Site: "ktmmobile", TabName: "제휴 요금제", ListTitle: "제휴 스페셜"}
	q := &models.RawPlan{Site: "ktmmobile", TabName: "제휴 요금제", ModalTitle: "제휴 스페셜"}
	if Fingerprint(p) != Fingerprint(q) {
		t.Fatal("list title should stand in when the modal title is missing")
	}
}
