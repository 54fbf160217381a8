package validate

// ValidRoutingNumber applies the ABA checksum to a 9-digit routing number:
// 3(d0+d3+d6) + 7(d1+d4+d7) + (d2+d5+d8) must be divisible by 10.
func ValidRoutingNumber(s string) bool {
	if len(s) != 9 {
		return false
	}
	var d [9]int
	for i := 0; i < 9; i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return false
		}
		d[i] = int(c - '0')
	}
	sum := 3*(d[0]+d[3]+d[6]) + 7*(d[1]+d[4]+d[7]) + (d[2] + d[5] + d[8])
	return sum%10 == 0
}
