package square

import (
	"context"
	"strings"

	sq "github.com/square/square-go-sdk"

	pkgerrors "github.com/angelmondragon/smokeshop-backend/pkg/errors"
)

// Square customers created by the storefront carry the shop user id in
// reference_id. Lookups never match on email: a POS or marketplace profile
// sharing a buyer's email must not be linked to their account.

// customerSearchRequest matches exactly one customer by storefront reference.
func customerSearchRequest(referenceID string) *sq.SearchCustomersRequest {
	return &sq.SearchCustomersRequest{
		Query: &sq.CustomerQuery{
			Filter: &sq.CustomerFilter{
				ReferenceID: &sq.CustomerTextFilter{Exact: ptrString(referenceID)},
			},
		},
		Limit: int64Ptr(1),
	}
}

// FindCustomerByReference returns the customer linked to a storefront user,
// or nil when the user has never paid.
func (c *Client) FindCustomerByReference(ctx context.Context, referenceID string) (*sq.Customer, error) {
	if c == nil {
		return nil, errAccessTokenRequired
	}
	referenceID = strings.TrimSpace(referenceID)
	if referenceID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer reference is required")
	}

	c.log(ctx, "request", "search_customer", map[string]any{"reference_id": referenceID})
	resp, err := c.sdk.Customers.Search(ctx, customerSearchRequest(referenceID))
	if err != nil {
		c.log(ctx, "error", "search_customer", map[string]any{"error": err.Error()})
		return nil, c.mapSquareError(err, "search customer")
	}

	customers := resp.GetCustomers()
	if len(customers) == 0 {
		c.log(ctx, "response", "search_customer", map[string]any{"found": false})
		return nil, nil
	}
	c.log(ctx, "response", "search_customer", map[string]any{"customer_id": stringValue(customers[0].GetID())})
	return customers[0], nil
}

// EnsureCustomer returns the customer for params.ReferenceID, creating it on
// first checkout. The create is keyed on the reference so concurrent
// checkouts for one user converge on a single customer.
func (c *Client) EnsureCustomer(ctx context.Context, params CustomerCreateParams) (*sq.Customer, error) {
	customer, err := c.FindCustomerByReference(ctx, params.ReferenceID)
	if err != nil || customer != nil {
		return customer, err
	}
	params.ReferenceID = strings.TrimSpace(params.ReferenceID)
	if strings.TrimSpace(params.IdempotencyKey) == "" {
		params.IdempotencyKey = customerIdempotencyKey(params.ReferenceID)
	}
	return c.CreateCustomer(ctx, params)
}

func customerIdempotencyKey(referenceID string) string {
	return "customer-" + referenceID
}
