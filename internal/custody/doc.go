// Package custody separates holding value from the logic that decides what to
// do with it.
//
// The Vault holds assets mid-pipeline and only moves them on its
// controller's instruction. The AllowanceTarget is the fixed address users
// approve once; it forwards spends for whichever spender it currently trusts,
// so the logic behind the spender can be replaced without any user
// re-approving.
package custody
