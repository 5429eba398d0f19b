package main

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/language"
)

const notesEnglish = `Notes:
  Input file names must not contain control characters such as tabs or line breaks,
  such files are reported as failed and skipped.
  Files are named after the part of the base name before the first dot,
  so a.b.jpg produces a.tiff. Sources sharing such a stem overwrite each other.

Optional parameters (-param key=value):
  distance    Distance to the target in meters, [1, 25]. Radiation attenuates with
              distance, accuracy is best at the calibration distance of the camera.
  humidity    Relative humidity of the air in percent, [20, 100], 70 by default.
              Small influence on accuracy.
  emissivity  Ability of the target surface to emit radiation, [0.1, 1]. Look it up
              in an emissivity table, corrosion or oxidation changes it.
              Large influence on accuracy.
  reflection  Reflected temperature in degrees Celsius, [-40, 500]. Use the ambient
              temperature unless very hot or cold objects are nearby.
              The further it is from the ambient temperature, the larger the influence.
`

const notesChinese = `注意事项：
  输入的文件名不能含有 Tab、换行等控制字符，此类文件会被记录为失败并跳过。
  输出文件以文件名第一个点之前的部分命名，例如 a.b.jpg 生成 a.tiff，
  同名的源文件会互相覆盖。

可选参数（-param key=value）：
  distance    测温距离，单位米，取值范围 [1~25]。距离越远红外辐射衰减越多，
              在相机标定距离测温最精确。
  humidity    环境相对湿度，单位百分比，取值范围 [20~100]，默认 70。影响较小。
  emissivity  被测物体表面发射率，取值范围 [0.1~1]。可参考常见物质发射率表，
              表面腐蚀、氧化会使实际值偏离参考值。影响较大。
  reflection  反射温度，单位摄氏度，取值范围 [-40~500]。周围没有特别高温或低温
              物体时配置为环境温度即可，与环境温度偏差越大影响越大。
`

var notesMatcher = language.NewMatcher([]language.Tag{
	language.English,
	language.Chinese,
})

// notesFor returns the notes text for a POSIX locale value like zh_CN.UTF-8.
func notesFor(locale string) string {
	if i := strings.IndexAny(locale, ".@"); i >= 0 {
		locale = locale[:i]
	}
	locale = strings.ReplaceAll(locale, "_", "-")

	tag, err := language.Parse(locale)
	if err != nil {
		return notesEnglish
	}
	_, idx, conf := notesMatcher.Match(tag)
	if idx == 1 && conf != language.No {
		return notesChinese
	}
	return notesEnglish
}

func printNotes(w io.Writer, locale string) {
	fmt.Fprint(w, notesFor(locale))
}
