package schema

// satTypes holds the typed columns of the CFDI annex extracts, keyed by
// upper-cased name. Columns not listed here are text.
var satTypes = map[string]Kind{
	"FECHAEMISION":                  KindDatetime,
	"FECHACERTIFICACION":            KindDatetime,
	"FECHACANCELACION":              KindDatetime,
	"FECHAPAGO":                     KindDatetime,
	"FECHAINICIALPAGO":              KindDatetime,
	"FECHAFINALPAGO":                KindDatetime,
	"RECEPTORFECHAINICIORELLABORAL": KindDatetime,

	"DESCUENTO":                                  KindDecimal,
	"SUBTOTAL":                                   KindDecimal,
	"TOTAL":                                      KindDecimal,
	"TRASLADOSIVA":                               KindDecimal,
	"TRASLADOSIEPS":                              KindDecimal,
	"TOTALIMPUESTOSTRASLADADOS":                  KindDecimal,
	"RETENIDOSIVA":                               KindDecimal,
	"RETENIDOSISR":                               KindDecimal,
	"TOTALIMPUESTOSRETENIDOS":                    KindDecimal,
	"TIPOCAMBIO":                                 KindDecimal,
	"CONCEPTOCANTIDAD":                           KindDecimal,
	"CONCEPTOVALORUNITARIO":                      KindDecimal,
	"CONCEPTOIMPORTE":                            KindDecimal,
	"NUMDIASPAGADOS":                             KindDecimal,
	"TOTALPERCEPCIONES":                          KindDecimal,
	"TOTALDEDUCCIONES":                           KindDecimal,
	"TOTALOTROSPAGOS":                            KindDecimal,
	"PERCEPCIONESTOTALGRAVADO":                   KindDecimal,
	"PERCEPCIONESTOTALEXENTO":                    KindDecimal,
	"TOTALOTRASDEDUCCIONES":                      KindDecimal,
	"NOMINATOTALIMPUESTOSRETENIDOS":              KindDecimal,
	"EMISORENTIDADSNCFMONTORECURSOPROPIO":        KindDecimal,
	"PERCEPCIONIMPORTEGRAVADO":                   KindDecimal,
	"PERCEPCIONIMPORTEEXENTO":                    KindDecimal,
	"DEDUCCIONESIMPORTE":                         KindDecimal,
	"PERCEPCIONESTOTALSUELDOS":                   KindDecimal,
	"PERCEPCIONESTOTALSEPARACIONINDEMNIZACION":   KindDecimal,
	"PERCEPCIONESTOTALJUBILACIONPENSIONRETIRO":   KindDecimal,
	"JUBILACIONPENSIONRETIROTOTALUNAEXHIBICION":  KindDecimal,
	"JUBILACIONPENSIONRETIROTOTALPARCIALIDAD":    KindDecimal,
	"JUBILACIONPENSIONRETIROMONTODIARIO":         KindDecimal,
	"JUBILACIONPENSIONRETIROINGRESOACUMULABLE":   KindDecimal,
	"JUBILACIONPENSIONRETIROINGRESONOACUMULABLE": KindDecimal,
	"SEPARACIONINDEMNIZACIONTOTALPAGADO":         KindDecimal,
	"SEPARACIONINDEMNIZACIONULTIMOSUELDOMENSORD": KindDecimal,
	"SEPARACIONINDEMNIZACIONINGRESOACUMULABLE":   KindDecimal,
	"SEPARACIONINDEMNIZACIONINGRESONOACUMULABLE": KindDecimal,
	"IMPORTE":                                    KindDecimal,
	"SUBSIDIOCAUSADO":                            KindDecimal,
}

// businessLength bounds columns whose name contains key. A non-zero scale
// makes the column a decimal instead.
type businessLength struct {
	key    string
	length int
	scale  int
}

// businessLengths is ordered: the first key contained in a name wins, so
// RECEPTORRFC is an RFC and TIPODECOMPROBANTE a TIPO.
var businessLengths = []businessLength{
	{key: "RFC", length: 13},
	{key: "UUID", length: 36},
	{key: "CURP", length: 18},
	{key: "MONEDA", length: 10},
	{key: "TIPO", length: 10},
	{key: "METODOPAGO", length: 5},
	{key: "FORMAPAGO", length: 5},
	{key: "SERIE", length: 50},
	{key: "FOLIO", length: 50},
	{key: "NUMEMPLEADO", length: 50},
	{key: "BANCO", length: 10},
	{key: "CAMBIO", scale: 4},
}
