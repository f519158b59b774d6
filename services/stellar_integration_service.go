package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/stellar/go/clients/horizonclient"
	"github.com/stellar/go/keypair"
	"github.com/stellar/go/strkey"
	"github.com/stellar/go/txnbuild"
	"github.com/stellar/go/xdr"

	"github.com/ferreirogomes/notinha/logger"
)

// StellarIntegrationService fala com o ledger Stellar: constrói transações
// de invocação do contrato de faturas para assinatura pelo usuário, submete
// transações já assinadas via Horizon e lê valores do contrato via
// simulação no soroban-rpc. A conta fee-source só assina transações
// administrativas (ex.: sincronização de KYC), nunca em nome de usuários.
type StellarIntegrationService struct {
	Horizon           horizonclient.ClientInterface
	sorobanRPCURL     string
	networkPassphrase string
	contractID        string
	feeSource         *keypair.Full
	httpClient        *http.Client
}

// NewStellarIntegrationService cria o serviço de integração com a Stellar.
func NewStellarIntegrationService(horizonURL, sorobanRPCURL, networkPassphrase, contractID, feeSourceSecret string) (*StellarIntegrationService, error) {
	feeSource, err := keypair.ParseFull(feeSourceSecret)
	if err != nil {
		return nil, fmt.Errorf("falha ao carregar chave da conta fee-source: %w", err)
	}
	if _, err := strkey.Decode(strkey.VersionByteContract, contractID); err != nil {
		return nil, fmt.Errorf("ID de contrato inválido: %w", err)
	}
	return &StellarIntegrationService{
		Horizon:           &horizonclient.Client{HorizonURL: horizonURL},
		sorobanRPCURL:     sorobanRPCURL,
		networkPassphrase: networkPassphrase,
		contractID:        contractID,
		feeSource:         feeSource,
		httpClient:        &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// FeeSourceAddress retorna o endereço público da conta administrativa.
func (s *StellarIntegrationService) FeeSourceAddress() string {
	return s.feeSource.Address()
}

// BuildMintDraftTx constrói a transação de mint de uma fatura, a ser
// assinada pelo fornecedor.
func (s *StellarIntegrationService) BuildMintDraftTx(p MintDraftParams) (string, error) {
	supplier, err := scAccountAddress(p.SupplierAddress)
	if err != nil {
		return "", err
	}
	buyer, err := scAccountAddress(p.BuyerAddress)
	if err != nil {
		return "", err
	}
	return s.buildInvokeTx(p.SupplierAddress, "mint_draft", []xdr.ScVal{
		supplier,
		buyer,
		scI128(p.Amount),
		scString(p.Currency),
		scU64(uint64(p.DueDate.Unix())),
		scString(p.Description),
		scString(p.PurchaseOrder),
		scString(p.DocumentHash),
	})
}

// BuildApproveTx constrói a transação de aprovação, assinada pelo comprador.
func (s *StellarIntegrationService) BuildApproveTx(buyerAddress, ledgerInvoiceID string) (string, error) {
	buyer, err := scAccountAddress(buyerAddress)
	if err != nil {
		return "", err
	}
	return s.buildInvokeTx(buyerAddress, "approve_invoice", []xdr.ScVal{
		scString(ledgerInvoiceID),
		buyer,
	})
}

// BuildStartAuctionTx constrói a transação de início do leilão holandês.
func (s *StellarIntegrationService) BuildStartAuctionTx(supplierAddress, ledgerInvoiceID string, durationHours, maxDiscountBps int64) (string, error) {
	supplier, err := scAccountAddress(supplierAddress)
	if err != nil {
		return "", err
	}
	return s.buildInvokeTx(supplierAddress, "start_auction", []xdr.ScVal{
		scString(ledgerInvoiceID),
		supplier,
		scU64(uint64(durationHours)),
		scU32(uint32(maxDiscountBps)),
	})
}

// BuildInvestTx constrói a transação de investimento primário.
func (s *StellarIntegrationService) BuildInvestTx(investorAddress, ledgerInvoiceID string, tokenAmount int64) (string, error) {
	investor, err := scAccountAddress(investorAddress)
	if err != nil {
		return "", err
	}
	return s.buildInvokeTx(investorAddress, "invest", []xdr.ScVal{
		scString(ledgerInvoiceID),
		investor,
		scI128(tokenAmount),
	})
}

// BuildCreateOrderTx constrói a transação de criação de ordem de venda.
func (s *StellarIntegrationService) BuildCreateOrderTx(sellerAddress, ledgerInvoiceID string, tokenAmount, pricePerToken int64) (string, error) {
	seller, err := scAccountAddress(sellerAddress)
	if err != nil {
		return "", err
	}
	return s.buildInvokeTx(sellerAddress, "create_sell_order", []xdr.ScVal{
		scString(ledgerInvoiceID),
		seller,
		scI128(tokenAmount),
		scI128(pricePerToken),
	})
}

// BuildFillOrderTx constrói a transação de preenchimento de uma ordem.
func (s *StellarIntegrationService) BuildFillOrderTx(buyerAddress, ledgerOrderID string, tokenAmount int64) (string, error) {
	buyer, err := scAccountAddress(buyerAddress)
	if err != nil {
		return "", err
	}
	return s.buildInvokeTx(buyerAddress, "fill_order", []xdr.ScVal{
		scString(ledgerOrderID),
		buyer,
		scI128(tokenAmount),
	})
}

// BuildSettleTx constrói a transação de liquidação, assinada pelo comprador.
func (s *StellarIntegrationService) BuildSettleTx(buyerAddress, ledgerInvoiceID string, amount int64) (string, error) {
	buyer, err := scAccountAddress(buyerAddress)
	if err != nil {
		return "", err
	}
	return s.buildInvokeTx(buyerAddress, "settle", []xdr.ScVal{
		scString(ledgerInvoiceID),
		buyer,
		scI128(amount),
	})
}

// BuildClaimInsuranceTx constrói a transação de reivindicação de seguro.
func (s *StellarIntegrationService) BuildClaimInsuranceTx(investorAddress, ledgerInvoiceID string) (string, error) {
	investor, err := scAccountAddress(investorAddress)
	if err != nil {
		return "", err
	}
	return s.buildInvokeTx(investorAddress, "claim_insurance", []xdr.ScVal{
		scString(ledgerInvoiceID),
		investor,
	})
}

// SubmitSignedTransaction recebe um envelope XDR já assinado e o submete
// via Horizon. Retorna o hash da transação.
func (s *StellarIntegrationService) SubmitSignedTransaction(signedTxXDR string) (string, error) {
	resp, err := s.Horizon.SubmitTransactionXDR(signedTxXDR)
	if err != nil {
		return "", fmt.Errorf("falha ao submeter transação assinada: %w", err)
	}
	logger.Log.Infof("Transação assinada submetida: %s", resp.Hash)
	return resp.Hash, nil
}

// SyncInvestorKYC releia o status de KYC para o contrato, assinando com a
// conta administrativa fee-source. Chamado em melhor esforço após a
// aprovação local.
func (s *StellarIntegrationService) SyncInvestorKYC(investorAddress string, approved bool) (string, error) {
	admin, err := scAccountAddress(s.feeSource.Address())
	if err != nil {
		return "", err
	}
	investor, err := scAccountAddress(investorAddress)
	if err != nil {
		return "", err
	}
	unsigned, err := s.buildInvokeTx(s.feeSource.Address(), "set_investor_kyc", []xdr.ScVal{
		admin,
		investor,
		scBool(approved),
	})
	if err != nil {
		return "", err
	}

	tx, err := txnbuild.TransactionFromXDR(unsigned)
	if err != nil {
		return "", fmt.Errorf("falha ao reconstruir transação de KYC: %w", err)
	}
	inner, ok := tx.Transaction()
	if !ok {
		return "", fmt.Errorf("envelope de KYC inesperado")
	}
	signed, err := inner.Sign(s.networkPassphrase, s.feeSource)
	if err != nil {
		return "", fmt.Errorf("falha ao assinar transação de KYC: %w", err)
	}
	signedXDR, err := signed.Base64()
	if err != nil {
		return "", fmt.Errorf("falha ao serializar transação de KYC: %w", err)
	}
	return s.SubmitSignedTransaction(signedXDR)
}

// GetCurrentPrice lê o preço atual do leilão no contrato.
func (s *StellarIntegrationService) GetCurrentPrice(ledgerInvoiceID string) (int64, error) {
	return s.readContractI128("get_current_price", []xdr.ScVal{scString(ledgerInvoiceID)})
}

// GetSettlementAmount lê o valor de liquidação devido no contrato.
func (s *StellarIntegrationService) GetSettlementAmount(ledgerInvoiceID string) (int64, error) {
	return s.readContractI128("get_settlement_amount", []xdr.ScVal{scString(ledgerInvoiceID)})
}

// buildInvokeTx monta uma transação com uma única invocação de função do
// contrato de faturas, com a conta de origem informada e sem assinaturas.
func (s *StellarIntegrationService) buildInvokeTx(sourceAccount, function string, args []xdr.ScVal) (string, error) {
	contractAddr, err := s.contractAddress()
	if err != nil {
		return "", err
	}

	sourceDetail, err := s.Horizon.AccountDetail(horizonclient.AccountRequest{AccountID: sourceAccount})
	if err != nil {
		return "", fmt.Errorf("falha ao carregar conta de origem %s: %w", sourceAccount, err)
	}

	op := &txnbuild.InvokeHostFunction{
		HostFunction: xdr.HostFunction{
			Type: xdr.HostFunctionTypeHostFunctionTypeInvokeContract,
			InvokeContract: &xdr.InvokeContractArgs{
				ContractAddress: contractAddr,
				FunctionName:    xdr.ScSymbol(function),
				Args:            args,
			},
		},
		SourceAccount: sourceAccount,
	}

	tx, err := txnbuild.NewTransaction(txnbuild.TransactionParams{
		SourceAccount:        &sourceDetail,
		IncrementSequenceNum: true,
		Operations:           []txnbuild.Operation{op},
		BaseFee:              txnbuild.MinBaseFee,
		Preconditions:        txnbuild.Preconditions{TimeBounds: txnbuild.NewTimeout(300)},
	})
	if err != nil {
		return "", fmt.Errorf("falha ao montar transação de %s: %w", function, err)
	}

	b64, err := tx.Base64()
	if err != nil {
		return "", fmt.Errorf("falha ao serializar transação de %s: %w", function, err)
	}
	return b64, nil
}

// readContractI128 executa uma leitura do contrato via simulateTransaction
// no soroban-rpc e decodifica o i128 retornado.
func (s *StellarIntegrationService) readContractI128(function string, args []xdr.ScVal) (int64, error) {
	contractAddr, err := s.contractAddress()
	if err != nil {
		return 0, err
	}

	// Leituras não precisam de número de sequência válido: a transação é
	// apenas simulada, nunca submetida.
	source := txnbuild.NewSimpleAccount(s.feeSource.Address(), 0)
	op := &txnbuild.InvokeHostFunction{
		HostFunction: xdr.HostFunction{
			Type: xdr.HostFunctionTypeHostFunctionTypeInvokeContract,
			InvokeContract: &xdr.InvokeContractArgs{
				ContractAddress: contractAddr,
				FunctionName:    xdr.ScSymbol(function),
				Args:            args,
			},
		},
	}
	tx, err := txnbuild.NewTransaction(txnbuild.TransactionParams{
		SourceAccount:        &source,
		IncrementSequenceNum: true,
		Operations:           []txnbuild.Operation{op},
		BaseFee:              txnbuild.MinBaseFee,
		Preconditions:        txnbuild.Preconditions{TimeBounds: txnbuild.NewTimeout(300)},
	})
	if err != nil {
		return 0, fmt.Errorf("falha ao montar simulação de %s: %w", function, err)
	}
	b64, err := tx.Base64()
	if err != nil {
		return 0, fmt.Errorf("falha ao serializar simulação de %s: %w", function, err)
	}

	reqBody, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "simulateTransaction",
		"params":  map[string]string{"transaction": b64},
	})
	if err != nil {
		return 0, fmt.Errorf("falha ao montar requisição RPC: %w", err)
	}
	resp, err := s.httpClient.Post(s.sorobanRPCURL, "application/json", bytes.NewReader(reqBody))
	if err != nil {
		return 0, fmt.Errorf("falha ao chamar soroban-rpc: %w", err)
	}
	defer resp.Body.Close()

	var rpcResp struct {
		Result struct {
			Error   string `json:"error"`
			Results []struct {
				XDR string `json:"xdr"`
			} `json:"results"`
		} `json:"result"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return 0, fmt.Errorf("falha ao decodificar resposta do soroban-rpc: %w", err)
	}
	if rpcResp.Error != nil {
		return 0, fmt.Errorf("soroban-rpc retornou erro: %s", rpcResp.Error.Message)
	}
	if rpcResp.Result.Error != "" {
		return 0, fmt.Errorf("simulação de %s falhou: %s", function, rpcResp.Result.Error)
	}
	if len(rpcResp.Result.Results) == 0 {
		return 0, fmt.Errorf("simulação de %s sem resultado", function)
	}

	var val xdr.ScVal
	if err := xdr.SafeUnmarshalBase64(rpcResp.Result.Results[0].XDR, &val); err != nil {
		return 0, fmt.Errorf("falha ao decodificar resultado de %s: %w", function, err)
	}
	return i128ToInt64(val)
}

func (s *StellarIntegrationService) contractAddress() (xdr.ScAddress, error) {
	raw, err := strkey.Decode(strkey.VersionByteContract, s.contractID)
	if err != nil {
		return xdr.ScAddress{}, fmt.Errorf("ID de contrato inválido: %w", err)
	}
	var hash xdr.Hash
	copy(hash[:], raw)
	return xdr.ScAddress{Type: xdr.ScAddressTypeScAddressTypeContract, ContractId: &hash}, nil
}

func scAccountAddress(accountID string) (xdr.ScVal, error) {
	accID, err := xdr.AddressToAccountId(accountID)
	if err != nil {
		return xdr.ScVal{}, fmt.Errorf("endereço Stellar inválido %q: %w", accountID, err)
	}
	addr := xdr.ScAddress{Type: xdr.ScAddressTypeScAddressTypeAccount, AccountId: &accID}
	return xdr.ScVal{Type: xdr.ScValTypeScvAddress, Address: &addr}, nil
}

func scString(v string) xdr.ScVal {
	str := xdr.ScString(v)
	return xdr.ScVal{Type: xdr.ScValTypeScvString, Str: &str}
}

func scU64(v uint64) xdr.ScVal {
	u := xdr.Uint64(v)
	return xdr.ScVal{Type: xdr.ScValTypeScvU64, U64: &u}
}

func scU32(v uint32) xdr.ScVal {
	u := xdr.Uint32(v)
	return xdr.ScVal{Type: xdr.ScValTypeScvU32, U32: &u}
}

func scBool(v bool) xdr.ScVal {
	b := v
	return xdr.ScVal{Type: xdr.ScValTypeScvBool, B: &b}
}

func scI128(v int64) xdr.ScVal {
	parts := xdr.Int128Parts{Lo: xdr.Uint64(uint64(v))}
	if v < 0 {
		parts.Hi = xdr.Int64(-1)
	}
	return xdr.ScVal{Type: xdr.ScValTypeScvI128, I128: &parts}
}

// i128ToInt64 converte um ScVal i128 para int64, rejeitando valores fora
// da faixa representável.
func i128ToInt64(val xdr.ScVal) (int64, error) {
	if val.Type != xdr.ScValTypeScvI128 || val.I128 == nil {
		return 0, fmt.Errorf("valor do contrato não é i128 (tipo %v)", val.Type)
	}
	hi := int64(val.I128.Hi)
	lo := uint64(val.I128.Lo)
	switch {
	case hi == 0 && lo <= uint64(1<<63-1):
		return int64(lo), nil
	case hi == -1 && lo >= uint64(1<<63):
		return int64(lo), nil
	}
	return 0, fmt.Errorf("valor i128 fora da faixa de int64")
}
