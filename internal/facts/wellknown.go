package facts

import (
	"encoding/hex"

	"github.com/ethereum/go-ethereum/crypto"
)

// Well-known protocol constants detectors compare against. Computed at
// init from their defining preimages rather than pasted as hex.
var (
	// ERC-1967 proxy storage slots: keccak256(label) - 1.
	EIP1967ImplementationSlot = eip1967Slot("eip1967.proxy.implementation")
	EIP1967AdminSlot          = eip1967Slot("eip1967.proxy.admin")
	EIP1967BeaconSlot         = eip1967Slot("eip1967.proxy.beacon")

	// ERC-20 dispatch selectors.
	SelTransfer     = SelectorOf("transfer(address,uint256)")
	SelTransferFrom = SelectorOf("transferFrom(address,address,uint256)")
	SelApprove      = SelectorOf("approve(address,uint256)")
	SelBalanceOf    = SelectorOf("balanceOf(address)")

	// Upgradeable-contract entry points.
	SelInitialize = SelectorOf("initialize()")
	SelUpgradeTo  = SelectorOf("upgradeTo(address)")
)

func eip1967Slot(label string) string {
	h := crypto.Keccak256([]byte(label))
	// Subtract one from the 256-bit hash value; the label hashes never
	// end in 0x00, so a byte-level borrow cannot occur.
	h[len(h)-1]--
	return "0x" + hex.EncodeToString(h)
}
