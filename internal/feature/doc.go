// Package feature holds the modules installed behind the Dispatcher.
//
// Every feature runs delegated: its code executes against the Dispatcher's
// storage, in its own namespace, with the caller and value of the external
// call. Features enter the selector table through their migrate entry point,
// which must itself be delegate-called and answers MIGRATE_SUCCESS.
package feature
