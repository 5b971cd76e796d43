package labels

var hwModels = map[int]string{
	0:   "Unset",
	1:   "T-LoRa V2",
	2:   "T-LoRa V1",
	3:   "T-LoRa V2.1 1.6",
	4:   "T-Beam",
	5:   "Heltec V2.0",
	6:   "T-Beam V0.7",
	7:   "T-Echo",
	8:   "T-LoRa V1 1.3",
	9:   "RAK4631",
	10:  "Heltec V2.1",
	11:  "Heltec V1",
	12:  "T-Beam S3 Core",
	13:  "RAK11200",
	14:  "Nano G1",
	15:  "T-LoRa V2.1 1.8",
	16:  "T-LoRa T3 S3",
	17:  "Nano G1 Explorer",
	18:  "Nano G2 Ultra",
	19:  "LoRa Type",
	20:  "WiPhone",
	21:  "WIO WM1110",
	22:  "RAK2560",
	23:  "Heltec HRU 3601",
	24:  "Heltec Wireless Bridge",
	25:  "Station G1",
	26:  "RAK11310",
	27:  "SenseLora RP2040",
	28:  "SenseLora S3",
	29:  "CanaryOne",
	30:  "RP2040 LoRa",
	31:  "Station G2",
	32:  "LoRa Relay V1",
	33:  "T-Echo Plus",
	34:  "PPR",
	35:  "GenieBlocks",
	36:  "nRF52 Unknown",
	37:  "Portduino",
	38:  "Android Sim",
	39:  "DIY V1",
	40:  "nRF52840 PCA10059",
	41:  "DR Dev",
	42:  "M5Stack",
	43:  "Heltec V3",
	44:  "Heltec WSL V3",
	45:  "BetaFPV 2400 TX",
	46:  "BetaFPV 900 Nano TX",
	47:  "RPi Pico",
	48:  "Heltec Wireless Tracker",
	49:  "Heltec Wireless Paper",
	50:  "T-Deck",
	51:  "T-Watch S3",
	52:  "PiComputer S3",
	53:  "Heltec HT62",
	54:  "eByte ESP32-S3",
	55:  "ESP32-S3 Pico",
	56:  "Chatter 2",
	57:  "Heltec Wireless Paper V1.0",
	58:  "Heltec Wireless Tracker V1.0",
	59:  "unPhone",
	60:  "TD LoRaC",
	61:  "CDEBYTE EoRa S3",
	62:  "TWC Mesh V4",
	63:  "nRF52 ProMicro DIY",
	64:  "RadioMaster 900 Bandit Nano",
	65:  "Heltec Capsule Sensor V3",
	66:  "Heltec Vision Master T190",
	67:  "Heltec Vision Master E213",
	68:  "Heltec Vision Master E290",
	69:  "Heltec Mesh Node T114",
	70:  "SenseCAP Indicator",
	71:  "Tracker T1000-E",
	72:  "RAK3172",
	73:  "WIO-E5",
	74:  "RadioMaster 900 Bandit",
	75:  "ME25LS01 4Y10TD",
	76:  "RP2040 Feather RFM95",
	77:  "M5Stack Core Basic",
	78:  "M5Stack Core2",
	79:  "RPi Pico 2",
	80:  "M5Stack CoreS3",
	81:  "Seeed XIAO S3",
	82:  "MS24SF1",
	83:  "T-LoRa C6",
	84:  "WisMesh Tap",
	85:  "Routastic",
	86:  "Mesh Tab",
	87:  "MeshLink",
	88:  "XIAO nRF52 Kit",
	89:  "ThinkNode M1",
	90:  "ThinkNode M2",
	91:  "T-ETH Elite",
	92:  "Heltec Sensor Hub",
	93:  "Muzi Base",
	94:  "Heltec Mesh Pocket",
	95:  "Seeed Solar Node",
	96:  "NomadStar Meteor Pro",
	97:  "CrowPanel",
	98:  "Link 32",
	99:  "WIO Tracker L1",
	100: "WIO Tracker L1 E-Ink",
	101: "Muzi R1 Neo",
	102: "T-Deck Pro",
	103: "T-LoRa Pager",
	104: "M5Stack Reserved",
	105: "WisMesh Tag",
	106: "RAK3312",
	107: "ThinkNode M5",
	108: "Heltec Mesh Solar",
	109: "T-Echo Lite",
	110: "Heltec V4",
	111: "M5Stack C6L",
	112: "M5Stack Cardputer Adv",
	113: "Heltec Wireless Tracker V2",
	114: "T-Watch Ultra",
	115: "ThinkNode M3",
	116: "WisMesh Tap V2",
	117: "RAK3401",
	118: "RAK6421",
	119: "ThinkNode M4",
	120: "ThinkNode M6",
	121: "MeshStick 1262",
	122: "T-Beam 1 Watt",
	123: "T5 S3 E-Paper Pro",
	255: "Private HW",
}
