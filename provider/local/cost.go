//go:build !race

package local

func credentialHashCost() int {
	return 14
}
