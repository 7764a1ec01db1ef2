package store

import "fmt"

// timeKeyWidth is the zero-padded width of a millisecond epoch in an
// idx_valid_time/idx_tx_time key. bbolt compares keys
// byte-lexicographically, so unpadded decimal strings would not sort in
// time order once digit counts diverge (e.g. "9999" would sort after
// "10000").
const timeKeyWidth = 13

// timeIndexKey builds a "{millis}:{entityID}:{factID}" key for the
// idx_valid_time/idx_tx_time buckets.
func timeIndexKey(millis int64, entityID, factID string) []byte {
	return []byte(fmt.Sprintf("%0*d:%s:%s", timeKeyWidth, millis, entityID, factID))
}

// timeIndexPrefix builds the lower bound of a millis range scan.
func timeIndexPrefix(millis int64) []byte {
	return []byte(fmt.Sprintf("%0*d", timeKeyWidth, millis))
}

// entityTypeKey builds a "{kind}:{entityID}" key for idx_entity_type.
func entityTypeKey(kind, entityID string) []byte {
	return []byte(kind + ":" + entityID)
}

// entityTypePrefix builds the "{kind}:" prefix for a type-index scan.
func entityTypePrefix(kind string) []byte {
	return []byte(kind + ":")
}

// testNameKey builds a "test_name:{runID}:{name}" key for idx_test_name.
func testNameKey(runID, name string) []byte {
	return []byte("test_name:" + runID + ":" + name)
}
