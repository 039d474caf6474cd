package testutil

import (
	"github.com/roach88/idsync/internal/doc"
	"github.com/roach88/idsync/internal/match"
)

// Alice is the canonical identity used across reconcile tests.
var Alice = match.IdentityRecord{
	StableID: "CUS000001",
	FullName: "Alice Tran",
	Phone:    "0900000001",
}

// Order builds an order document with a shippingInfo block.
func Order(id, fullName, phone, customerID string) doc.Object {
	return doc.Object{
		doc.F("OrderID", doc.String(id)),
		doc.F("shippingInfo", doc.Object{
			doc.F("fullName", doc.String(fullName)),
			doc.F("phone", doc.String(phone)),
		}),
		doc.F("CustomerID", doc.String(customerID)),
	}
}

// Customer builds a customer document in the default identity shape.
func Customer(stableID, fullName, phone, email string) doc.Object {
	return doc.Object{
		doc.F("CustomerID", doc.String(stableID)),
		doc.F("fullName", doc.String(fullName)),
		doc.F("phone", doc.String(phone)),
		doc.F("email", doc.String(email)),
	}
}
