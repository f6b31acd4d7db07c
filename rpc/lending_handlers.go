package rpc

import (
	"encoding/json"
	"math/big"
	"net/http"
	"strings"

	"lendledger/crypto"
)

type handlerFunc func(http.ResponseWriter, *http.Request, *RPCRequest)

func (s *Server) methods() map[string]handlerFunc {
	return map[string]handlerFunc{
		"lending_deposit":              s.handleDeposit,
		"lending_withdraw":             s.handleWithdraw,
		"lending_addCollateral":        s.handleAddCollateral,
		"lending_removeCollateral":     s.handleRemoveCollateral,
		"lending_borrow":               s.handleBorrow,
		"lending_repay":                s.handleRepay,
		"lending_liquidate":            s.handleLiquidate,
		"lending_accrueInterest":       s.handleAccrueInterest,
		"lending_pause":                s.handlePause,
		"lending_unpause":              s.handleUnpause,
		"lending_setInterestRateModel": s.handleSetInterestRateModel,
		"lending_reinitialize":         s.handleReinitialize,
		"lending_getAccountLiquidity":  s.handleGetAccountLiquidity,
		"lending_getPosition":          s.handleGetPosition,
		"lending_getTotalSupply":       s.handleGetTotalSupply,
		"lending_getTotalBorrow":       s.handleGetTotalBorrow,
	}
}

type callerAmountParams struct {
	Caller string `json:"caller"`
	Amount string `json:"amount"`
}

type liquidateParams struct {
	Caller   string `json:"caller"`
	Borrower string `json:"borrower"`
	Amount   string `json:"amount"`
}

type adminParams struct {
	Caller string `json:"caller"`
}

type setModelParams struct {
	Caller   string `json:"caller"`
	NewModel string `json:"newModel"`
}

type reinitializeParams struct {
	Caller   string `json:"caller"`
	NewModel string `json:"newModel"`
	NewAsset string `json:"newAsset"`
}

type accountParams struct {
	Address string `json:"address"`
}

type amountResult struct {
	Amount string `json:"amount"`
}

type positionResult struct {
	Address    string `json:"address"`
	Balance    string `json:"balance"`
	Debt       string `json:"debt"`
	Collateral string `json:"collateral"`
}

type acceptedResult struct {
	Status string `json:"status"`
}

var resultAccepted = acceptedResult{Status: "ok"}

func decodeParams(w http.ResponseWriter, req *RPCRequest, out interface{}) bool {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "expected a single params object", nil)
		return false
	}
	if err := json.Unmarshal(req.Params[0], out); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return false
	}
	return true
}

func parseAddress(w http.ResponseWriter, req *RPCRequest, field, value string) (crypto.Address, bool) {
	addr, err := crypto.DecodeAddress(strings.TrimSpace(value))
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid "+field+" address", err.Error())
		return crypto.Address{}, false
	}
	return addr, true
}

func parseAmount(w http.ResponseWriter, req *RPCRequest, value string) (*big.Int, bool) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid amount", value)
		return nil, false
	}
	return amount, true
}

func (s *Server) callerAmount(w http.ResponseWriter, req *RPCRequest) (crypto.Address, *big.Int, bool) {
	var params callerAmountParams
	if !decodeParams(w, req, &params) {
		return crypto.Address{}, nil, false
	}
	caller, ok := parseAddress(w, req, "caller", params.Caller)
	if !ok {
		return crypto.Address{}, nil, false
	}
	amount, ok := parseAmount(w, req, params.Amount)
	if !ok {
		return crypto.Address{}, nil, false
	}
	return caller, amount, true
}

func (s *Server) handleDeposit(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	caller, amount, ok := s.callerAmount(w, req)
	if !ok {
		return
	}
	if err := s.engine.Deposit(caller, amount); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, resultAccepted)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	caller, amount, ok := s.callerAmount(w, req)
	if !ok {
		return
	}
	if err := s.engine.Withdraw(caller, amount); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, resultAccepted)
}

func (s *Server) handleAddCollateral(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	caller, amount, ok := s.callerAmount(w, req)
	if !ok {
		return
	}
	if err := s.engine.AddCollateral(caller, amount); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, resultAccepted)
}

func (s *Server) handleRemoveCollateral(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	caller, amount, ok := s.callerAmount(w, req)
	if !ok {
		return
	}
	if err := s.engine.RemoveCollateral(caller, amount); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, resultAccepted)
}

func (s *Server) handleBorrow(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	caller, amount, ok := s.callerAmount(w, req)
	if !ok {
		return
	}
	if err := s.engine.Borrow(caller, amount); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, resultAccepted)
}

func (s *Server) handleRepay(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	caller, amount, ok := s.callerAmount(w, req)
	if !ok {
		return
	}
	if err := s.engine.Repay(caller, amount); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, resultAccepted)
}

func (s *Server) handleLiquidate(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params liquidateParams
	if !decodeParams(w, req, &params) {
		return
	}
	caller, ok := parseAddress(w, req, "caller", params.Caller)
	if !ok {
		return
	}
	borrower, ok := parseAddress(w, req, "borrower", params.Borrower)
	if !ok {
		return
	}
	amount, ok := parseAmount(w, req, params.Amount)
	if !ok {
		return
	}
	if err := s.engine.Liquidate(caller, borrower, amount); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, resultAccepted)
}

func (s *Server) handleAccrueInterest(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if err := s.engine.AccrueInterest(); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, resultAccepted)
}

func (s *Server) handlePause(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params adminParams
	if !decodeParams(w, req, &params) {
		return
	}
	caller, ok := parseAddress(w, req, "caller", params.Caller)
	if !ok {
		return
	}
	if err := s.engine.Pause(caller); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, resultAccepted)
}

func (s *Server) handleUnpause(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params adminParams
	if !decodeParams(w, req, &params) {
		return
	}
	caller, ok := parseAddress(w, req, "caller", params.Caller)
	if !ok {
		return
	}
	if err := s.engine.Unpause(caller); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, resultAccepted)
}

func (s *Server) handleSetInterestRateModel(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params setModelParams
	if !decodeParams(w, req, &params) {
		return
	}
	caller, ok := parseAddress(w, req, "caller", params.Caller)
	if !ok {
		return
	}
	model, ok := parseAddress(w, req, "newModel", params.NewModel)
	if !ok {
		return
	}
	if err := s.engine.SetInterestRateModel(caller, model); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, resultAccepted)
}

func (s *Server) handleReinitialize(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params reinitializeParams
	if !decodeParams(w, req, &params) {
		return
	}
	caller, ok := parseAddress(w, req, "caller", params.Caller)
	if !ok {
		return
	}
	model, ok := parseAddress(w, req, "newModel", params.NewModel)
	if !ok {
		return
	}
	asset, ok := parseAddress(w, req, "newAsset", params.NewAsset)
	if !ok {
		return
	}
	if err := s.engine.Reinitialize(caller, model, asset); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, resultAccepted)
}

func (s *Server) handleGetAccountLiquidity(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params accountParams
	if !decodeParams(w, req, &params) {
		return
	}
	account, ok := parseAddress(w, req, "account", params.Address)
	if !ok {
		return
	}
	liquidity, err := s.engine.AccountLiquidity(account)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, amountResult{Amount: liquidity.String()})
}

func (s *Server) handleGetPosition(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params accountParams
	if !decodeParams(w, req, &params) {
		return
	}
	account, ok := parseAddress(w, req, "account", params.Address)
	if !ok {
		return
	}
	position, err := s.engine.Position(account)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, positionResult{
		Address:    account.String(),
		Balance:    position.Balance.String(),
		Debt:       position.Debt.String(),
		Collateral: position.Collateral.String(),
	})
}

func (s *Server) handleGetTotalSupply(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	supply, err := s.engine.TotalSupply()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, amountResult{Amount: supply.String()})
}

func (s *Server) handleGetTotalBorrow(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	borrow, err := s.engine.TotalBorrow()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, amountResult{Amount: borrow.String()})
}
