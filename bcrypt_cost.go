//go:build !race

package auth

// productionHashCost is the bcrypt cost used by HashPassword
const productionHashCost = 12

func passwordHashCost() int {
	return productionHashCost
}
