// Package proxy implements the Dispatcher: the single long-lived entry point
// whose address never changes while the code behind each function does.
//
// The Dispatcher keeps a selector table in its own storage. Calls to selectors
// it does not define itself fall through to the table and are delegated to
// the registered implementation, which runs against the Dispatcher's storage
// with the original caller and value.
//
// The package also owns the storage layouts every feature agrees on: the
// selector table with its rollback history, and the one-shot migration record.
package proxy
