// Package testutil provides fixtures and builders shared by the arenakit tests.
// This package is intended for use in tests only and should not be imported in production code.
//
// Fakes implementing arenakit interfaces live in each package's _test.go files
// to avoid import cycles. This package only contains values and builders that
// do not depend on arenakit types.
//
// # Test Fixtures
//
//   - TestAccount, TestAgent1, TestAgent2, TestBattle1, ...: common addresses
//   - TestPrivateKeyHex, TestPrivateKey1, TestPrivateKey1Address: a signing key
//   - OneEth, TwentyGwei, TwoGwei: common values
//   - ChainIDBattlechain: the chain id used across tests
//
// # Builders
//
//   - NewDynamicTx, NewLegacyTx: transactions
//   - NewSuccessReceipt, NewFailedReceipt, NewDeployReceipt: receipts
//   - NewHeader, NewLegacyHeader: latest headers with and without a base fee
//   - Ether: parse a decimal ether amount in tests
package testutil
