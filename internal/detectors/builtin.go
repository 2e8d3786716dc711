package detectors

// NewBuiltinRegistry returns the stock detector set. Order here is the
// registration order, which is the primary ordering key for scan results;
// appending at the end keeps existing report ordering stable.
func NewBuiltinRegistry() *Registry {
	r := NewRegistry()
	for _, d := range []Detector{
		&missingAccessModifiers{},
		&unprotectedInitializer{},
		&txOriginAuth{},
		&unprotectedSelfdestruct{},
		&missingZeroAddressCheck{},
		&classicReentrancy{},
		&crossFunctionReentrancy{},
		&readOnlyReentrancy{},
		&upgradeableProxyIssues{},
		&uninitializedProxyStorage{},
		&storageLayoutShadowing{},
		&dangerousDelegatecall{},
		&uncheckedLowLevelCall{},
		&arbitraryExternalCall{},
		&spotPriceOracle{},
		&singleSourceOracle{},
		&missingSlippageCheck{},
		&feeOnTransferAssumption{},
		&erc20MissingReturn{},
		&erc721UnsafeMint{},
		&missingNonceReplay{},
		&missingDomainSeparator{},
		&unvalidatedBridgeMessage{},
		&replayableWithdrawal{},
		&unboundedWithdrawalQueue{},
		&gasGriefingLoop{},
		&returnbombCall{},
		&uncheckedArithmeticBlock{},
		&divideBeforeMultiply{},
		&weakRandomness{},
	} {
		r.mustRegister(d)
	}
	return r
}
