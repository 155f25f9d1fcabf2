package domain

import "fmt"

// citations holds the WOA23 volume references, keyed by variable code.
// The access date is appended by Citation.
var citations = map[string]string{
	"t": "Reagan, J.R., Boyer, T.P., García, H.E., Locarnini, R.A., Baranova, O.K., " +
		"Bouchard, C., Cross, S.L., Mishonov, A.V., Paver, C.R., Seidov, D., & " +
		"Dukhovskoy, D. (2024). World Ocean Atlas 2023, Volume 1: Temperature. " +
		"NOAA Atlas NESDIS 89. DOI: 10.25923/54bh-1613.",
	"s": "Reagan, J.R., Seidov, D., Wang, Z., Dukhovskoy, D., Boyer, T.P., Locarnini, R.A., " +
		"Baranova, O.K., Mishonov, A.V., García, H.E., Bouchard, C., Cross, S.L., & " +
		"Paver, C.R. (2024). World Ocean Atlas 2023, Volume 2: Salinity. " +
		"NOAA Atlas NESDIS 90. DOI: 10.25923/70qt-9574.",
	"o": "García, H.E., Wang, Z., Bouchard, C., Cross, S.L., Paver, C.R., Reagan, J.R., " +
		"Boyer, T.P., Locarnini, R.A., Mishonov, A.V., Baranova, O.K., Seidov, D., & " +
		"Dukhovskoy, D. (2024). World Ocean Atlas 2023, Volume 3: Dissolved Oxygen, " +
		"Apparent Oxygen Utilization, and Oxygen Saturation. NOAA Atlas NESDIS 91. " +
		"DOI: 10.25923/rb67-ns53.",
	"n": "García, H.E., Bouchard, C., Cross, S.L., Paver, C.R., Wang, Z., Reagan, J.R., " +
		"Boyer, T.P., Locarnini, R.A., Mishonov, A.V., Baranova, O.K., Seidov, D., & " +
		"Dukhovskoy, D. (2024). World Ocean Atlas 2023, Volume 4: Dissolved Inorganic " +
		"Nutrients (phosphate, nitrate, silicate). A. Mishonov, Tech. Ed. NOAA Atlas " +
		"NESDIS 92. DOI: 10.25923/39qw-7j08.",
}

// citationVolume maps each variable code to the volume that documents it.
var citationVolume = map[string]string{
	"t": "t",
	"s": "s",
	"o": "o",
	"O": "o",
	"A": "o",
	"n": "n",
	"p": "n",
	"i": "n",
}

// Citation returns the WOA23 reference for a variable with the given access date (YYYY-MM-DD).
func Citation(variable, accessDate string) (string, error) {
	volume, ok := citationVolume[variable]
	if !ok {
		return "", fmt.Errorf("%w: no citation for variable code %q", ErrInvalidSelector, variable)
	}
	return fmt.Sprintf("%s Accessed %s.", citations[volume], accessDate), nil
}
