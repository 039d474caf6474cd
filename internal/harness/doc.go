// Package harness runs YAML reconcile scenarios against in-memory stores.
//
// # Scenario Format
//
//	name: reconcile_orders
//	description: "What this scenario validates"
//	operation: reconcile            # reconcile | sync | propagate
//	target:
//	  name: orders
//	  key: OrderID
//	  full_name: shippingInfo.fullName
//	  phone: shippingInfo.phone
//	  tracked: [CustomerID]
//	customers:
//	  - {CustomerID: CUS000001, fullName: Alice Tran, phone: "0900000001"}
//	documents:
//	  - _id: !oid 65a000000000000000000001
//	    OrderID: O1
//	    shippingInfo: {fullName: Alice Tran, phone: "0900000001"}
//	    CustomerID: OLD
//	fail_keys: [O2]                 # updates of these keys fail
//	expect:
//	  report: {updated: 1, skipped: 0, unmatched_keys: []}
//	  documents:
//	    - where: {OrderID: O1}
//	      fields: {CustomerID: CUS000001}
//
// Documents keep their YAML key order. !oid and !date tag ObjectID and
// Timestamp values. Quote phone numbers, or YAML reads them as integers.
//
// # Deterministic Testing
//
// Every run uses a fixed run id (testutil.FixedRunID), a deterministic clock
// (testutil.DeterministicClock) and fresh store.Memory collections, so the
// final documents can be compared byte for byte against golden files with
// RunWithGolden.
package harness
