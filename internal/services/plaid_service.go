package services

import (
	"context"
	"fmt"

	"github.com/plaid/plaid-go/v20/plaid"
)

// LinkedAccount is what bank linking yields: a Stripe-chargeable bank
// token plus display info for the client.
type LinkedAccount struct {
	PlaidItemID     string
	StripeBankToken string
	AccountMask     string
	InstitutionName string
}

// PlaidService wraps Plaid token exchange.
type PlaidService struct {
	client *plaid.APIClient
}

// NewPlaidService creates a Plaid client for the configured environment.
func NewPlaidService(clientID, secret, environment string) *PlaidService {
	cfg := plaid.NewConfiguration()
	cfg.AddDefaultHeader("PLAID-CLIENT-ID", clientID)
	cfg.AddDefaultHeader("PLAID-SECRET", secret)

	switch environment {
	case "production":
		cfg.UseEnvironment(plaid.Production)
	default:
		cfg.UseEnvironment(plaid.Sandbox)
	}

	return &PlaidService{client: plaid.NewAPIClient(cfg)}
}

// ExchangePublicToken turns a Link public token into a Stripe bank token
// for the user's first linked account.
func (s *PlaidService) ExchangePublicToken(ctx context.Context, publicToken string) (*LinkedAccount, error) {
	exchangeReq := plaid.NewItemPublicTokenExchangeRequest(publicToken)
	exchangeResp, _, err := s.client.PlaidApi.ItemPublicTokenExchange(ctx).
		ItemPublicTokenExchangeRequest(*exchangeReq).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("plaid token exchange failed: %w", err)
	}

	accessToken := exchangeResp.GetAccessToken()
	itemID := exchangeResp.GetItemId()

	accountsReq := plaid.NewAccountsGetRequest(accessToken)
	accountsResp, _, err := s.client.PlaidApi.AccountsGet(ctx).
		AccountsGetRequest(*accountsReq).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("plaid accounts fetch failed: %w", err)
	}

	accounts := accountsResp.GetAccounts()
	if len(accounts) == 0 {
		return nil, fmt.Errorf("no accounts on linked item %s", itemID)
	}
	account := accounts[0]

	processorReq := plaid.NewProcessorStripeBankAccountTokenCreateRequest(accessToken, account.GetAccountId())
	processorResp, _, err := s.client.PlaidApi.ProcessorStripeBankAccountTokenCreate(ctx).
		ProcessorStripeBankAccountTokenCreateRequest(*processorReq).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("stripe bank token creation failed: %w", err)
	}

	item := accountsResp.GetItem()
	return &LinkedAccount{
		PlaidItemID:     itemID,
		StripeBankToken: processorResp.GetStripeBankAccountToken(),
		AccountMask:     account.GetMask(),
		InstitutionName: item.GetInstitutionId(),
	}, nil
}
