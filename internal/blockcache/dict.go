package blockcache

// embeddedDict is the fixed zstd dictionary shared by every block frame
// written to the on-disk cache. It is 1024 bytes long. Frames are only
// readable with the dictionary they were written under, so block files
// written with any other dictionary do not decode through this cache, and
// this one must never change once blocks have been written under it.
var embeddedDict = []byte{
	55, 164, 48, 236, 7, 34, 148, 5, 9, 16, 16, 223,
	48, 51, 51, 179, 119, 10, 51, 241, 120, 60, 30, 143,
	199, 227, 241, 120, 60, 207, 243, 188, 247, 212, 66, 65,
	65, 65, 65, 65, 65, 65, 65, 65, 65, 65, 65, 65,
	65, 65, 65, 65, 65, 65, 65, 65, 65, 65, 65, 65,
	161, 80, 40, 20, 10, 133, 66, 161, 80, 40, 20, 10,
	133, 162, 40, 138, 162, 40, 74, 41, 125, 116, 225, 225,
	225, 225, 225, 225, 225, 225, 225, 225, 225, 225, 225, 225,
	225, 225, 225, 225, 225, 241, 120, 60, 30, 143, 199, 227,
	241, 120, 158, 231, 121, 239, 1, 1, 0, 0, 0, 4,
	0, 0, 0, 8, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 4, 0, 0, 0, 0, 0, 0, 0, 40, 183, 82,
	174, 113, 145, 140, 118, 18, 202, 97, 91, 116, 107, 176,
	146, 229, 43, 126, 154, 64, 206, 227, 164, 103, 80, 43,
	109, 166, 211, 6, 35, 77, 89, 94, 179, 196, 243, 64,
	239, 116, 117, 72, 92, 42, 167, 145, 98, 97, 82, 140,
	37, 209, 235, 115, 181, 191, 52, 170, 80, 210, 84, 19,
	22, 244, 90, 171, 244, 109, 27, 52, 131, 96, 144, 234,
	191, 150, 88, 133, 11, 222, 206, 146, 184, 20, 10, 66,
	160, 209, 127, 19, 107, 37, 23, 201, 84, 9, 42, 28,
	132, 122, 151, 168, 193, 140, 68, 139, 206, 164, 4, 33,
	109, 220, 75, 200, 125, 97, 223, 50, 145, 168, 91, 207,
	36, 61, 46, 10, 11, 208, 143, 247, 23, 57, 186, 140,
	177, 73, 49, 78, 179, 136, 159, 200, 98, 47, 223, 57,
	208, 195, 119, 209, 28, 216, 190, 131, 129, 93, 62, 15,
	17, 1, 0, 0, 0, 0, 0, 0, 0, 192, 248, 203,
	199, 58, 132, 74, 182, 195, 88, 109, 136, 145, 226, 155,
	103, 122, 58, 160, 143, 37, 249, 174, 192, 248, 84, 167,
	43, 242, 226, 248, 76, 42, 72, 201, 221, 27, 190, 10,
	102, 0, 0, 0, 0, 5, 0, 0, 0, 0, 0, 0,
	0, 139, 141, 30, 163, 2, 191, 163, 5, 176, 77, 242,
	170, 5, 137, 57, 61, 100, 88, 92, 113, 253, 17, 58,
	60, 19, 87, 103, 132, 224, 58, 192, 199, 198, 45, 120,
	72, 201, 88, 233, 70, 0, 0, 0, 0, 0, 0, 0,
	0, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 33, 56, 0, 0, 0, 0, 0, 0, 231, 248, 139,
	226, 133, 117, 234, 96, 254, 234, 212, 111, 171, 160, 194,
	109, 175, 182, 105, 126, 24, 79, 142, 67, 136, 192, 125,
	78, 188, 17, 196, 167, 26, 162, 0, 0, 0, 0, 0,
	0, 47, 0, 182, 229, 150, 1, 0, 0, 34, 32, 117,
	171, 29, 8, 209, 142, 162, 15, 245, 103, 29, 40, 168,
	217, 142, 252, 184, 78, 231, 34, 0, 169, 45, 26, 151,
	237, 71, 97, 195, 89, 205, 11, 12, 209, 121, 113, 198,
	18, 0, 46, 110, 37, 126, 35, 111, 39, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 34, 138, 156, 50, 163, 123, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 240, 2, 227,
	190, 33, 203, 70, 102, 114, 43, 173, 19, 74, 71, 126,
	253, 172, 8, 78, 175, 208, 203, 201, 195, 217, 125, 199,
	41, 119, 214, 102, 44, 2, 49, 119, 55, 136, 255, 185,
	152, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 128, 212, 219, 233, 140, 160, 57,
	89, 62, 25, 0, 0, 1, 0, 0, 0, 0, 128, 212,
	219, 233, 140, 160, 57, 89, 62, 25, 0, 0, 47, 0,
	182, 229, 150, 1, 0, 0, 174, 85, 124, 133, 196, 38,
	87, 193, 211, 15, 255, 94, 175, 161, 183, 78, 231, 92,
	96, 179, 113, 66, 176, 67, 200, 135, 142, 145, 106, 42,
	160, 81, 39, 82, 116, 184, 121, 180, 29, 168, 1, 26,
	252, 0, 0, 0, 0, 0, 0, 9, 0, 0, 0, 0,
	0, 0, 0, 185, 27, 242, 236, 78, 5, 7, 187, 144,
	28, 209, 189, 221, 36, 84, 86, 196, 25, 247, 227, 121,
	28, 123, 173, 204, 6, 200, 123, 136, 228, 176, 67, 93,
	229, 171, 139, 250, 73, 202, 193, 31, 201, 3, 186, 237,
	197, 221, 187, 73, 92, 226, 102, 239, 237, 182, 81, 255,
	213, 238, 25, 233, 112, 192, 182, 142, 131, 71, 17, 150,
	53, 47, 90, 101, 188, 119, 214, 214, 186, 149, 67, 50,
	135, 196, 80, 95, 100, 198, 114, 1, 41, 77, 223, 128,
	27, 191, 204, 151, 53, 150, 42, 249, 152, 63, 0, 159,
	54, 241, 32, 119, 116, 90, 169, 49, 238, 54, 40, 248,
	187, 90, 174, 7, 154, 179, 50, 196, 84, 250, 99, 178,
	100, 222, 44, 112, 13, 154, 29, 126, 148, 228, 171, 192,
	194, 159, 67, 251, 179, 19, 41, 108, 163, 135, 9, 94,
	211, 78, 38, 4, 115, 18, 216, 5, 79, 214, 82, 232,
	230, 206, 191, 50, 39, 174, 134, 28, 215, 227, 112, 13,
	163, 26, 247, 159, 199, 182, 39, 139, 103, 62, 52, 204,
	101, 237, 77, 232, 25, 167, 2, 54, 144, 200, 104, 250,
	17, 139, 17, 187, 57, 252, 177, 0, 45, 73, 81, 234,
	119, 75, 129, 243, 40, 81, 209, 22, 25, 243, 42, 21,
	118, 198, 167, 93, 2, 156, 221, 181, 102, 186, 240, 30,
	233, 202, 1, 118, 109, 13, 166, 182, 38, 113, 247, 233,
	2, 13, 212, 135, 69, 76, 218, 229, 72, 220, 79, 97,
	55, 51, 167, 112, 161, 29, 98, 210, 45, 40, 213, 210,
	74, 85, 232, 163, 192, 239, 74, 193, 137, 66, 36, 41,
	237, 27, 143, 239, 178, 92, 127, 162, 165, 190, 102, 124,
	77, 152, 250, 35,
}
