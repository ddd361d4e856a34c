package domain

// KeyPrefix namespaces all docpipe keys in the store.
const KeyPrefix = "docpipe:"

// Collection names for the two document sets the pipeline reads.
const (
	ContactsCollection = "contacts"
	CriteriaCollection = "criteria"
)
