// Package harness runs YAML scenarios against a freshly deployed Dispatcher.
//
// Each scenario names a CUE deployment manifest, deploys it on a host over an
// in-memory store, executes its steps as external calls and checks the
// receipts and final state.
//
// # Scenario Format
//
//	name: transform_mint
//	description: "USD converts to EUR at half rate"
//	manifest: ../manifests/standard
//	accounts:
//	  alice: "0x00000000000000000000000000000000000a11ce"
//	setup:
//	  - from: "@alice"
//	    to: "@USD"
//	    call: approve
//	    args: { spender: "@allowanceTarget", amount: 500 }
//	flow:
//	  - from: "@alice"
//	    to: "@dispatcher"
//	    call: transformERC20
//	    args: { ... }
//	    expect:
//	      status: success
//	      result: { outputTokenAmount: 100 }
//	      events: [Transfer, Transfer, TransformedERC20]
//	assertions:
//	  - type: balance
//	    token: "@EUR"
//	    account: "@alice"
//	    amount: 100
//
// # References
//
// Strings starting with "@" are resolved before a call:
//
//   - scenario accounts by name
//   - manifest roles: @deployer, @owner, @transformerDeployer
//   - deployed modules: @dispatcher, @migrator, @registry, @ownable,
//     @tokenSpender, @transformERC20, @allowanceTarget
//   - token labels from the manifest, e.g. @USD
//   - @transformer.<name> and @nonce.<name> for deployed transformers
//   - @wallet, the current transform wallet of the Dispatcher
//   - @native, the zero address standing for native value
//
// A call is either a function name, looked up across every registered code
// kind, or a full signature such as "migrate(address,tuple)" when a name is
// shared by several signatures.
//
// # Assertion Types
//
//   - balance: token balance (or native balance) of an account
//   - event_count: number of logged events with a name, optionally per emitter
//   - event_order: event names appear in the log in this relative order
//   - view: read-only call whose result contains the given fields
//
// # Golden Traces
//
// Snapshot renders the executed flow as canonical JSON with addresses
// replaced by their reference labels, so traces are stable across
// deployments. AssertGolden compares it against testdata/golden.
package harness
