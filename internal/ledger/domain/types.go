package domain

import "math/big"

// Balance is a point-in-time view of an address balance.
type Balance struct {
	Address string
	Amount  *big.Int
}

// Supply is a point-in-time view of the total minted supply.
type Supply struct {
	Total *big.Int
}
